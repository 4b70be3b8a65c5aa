// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/mf-maestro/maestro/internal/config"
	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// FileName is the manifest written next to an entity's bundles.
const FileName = "mf-maestro.json"

type (
	// Manifest maps microAppName to its raw JSON entry. Entries are kept
	// raw so keys written by other tools survive a merge untouched.
	Manifest map[string]json.RawMessage

	// Entry is the value written for a processed component.
	Entry struct {
		Processor    string   `json:"processor"`
		RequiredAcls []string `json:"requiredAcls"`
		UIType       string   `json:"uiType"`
		URL          string   `json:"url,omitempty"`
		CSS          string   `json:"css,omitempty"`
	}

	// ArtifactDirFunc returns the directory holding a component's bundle.
	ArtifactDirFunc func(c config.ComponentConfig) string

	// Merger reads, merges and writes manifests on a filesystem.
	Merger struct {
		fs billy.Filesystem
		// Prefix is prepended to every url and css, without trailing slash.
		Prefix string
		// JSEntry selects the js file whose name starts with it. Empty
		// selects the first js file.
		JSEntry string
		logger  *slog.Logger
	}
)

// NewMerger returns a Merger on fs.
func NewMerger(fs billy.Filesystem, prefix, jsEntry string) *Merger {
	return &Merger{fs: fs, Prefix: strings.TrimSuffix(prefix, "/"), JSEntry: jsEntry, logger: slog.Default()}
}

// Load reads the manifest at name. A missing, unreadable or non-object
// file yields an empty manifest.
func (m *Merger) Load(name string) Manifest {
	data, err := util.ReadFile(m.fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info("manifest does not exist yet", "path", name)
		} else {
			m.logger.Warn("manifest unreadable, starting empty", "path", name, "error", err)
		}
		return Manifest{}
	}

	var out Manifest
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		m.logger.Warn("manifest is not a JSON object, starting empty", "path", name, "error", err)
		return Manifest{}
	}
	return out
}

// Merge loads manifestPath and sets one entry per descriptor. A descriptor
// whose artifact directory cannot be read is skipped and its prior entry,
// if any, is kept.
func (m *Merger) Merge(ctx context.Context, entity, manifestPath string, descriptors []config.ComponentConfig, artifactDirFor ArtifactDirFunc) (Manifest, error) {
	out := m.Load(manifestPath)

	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := m.entry(entity, d, artifactDirFor(d))
		if err != nil {
			m.logger.Warn("skipping manifest entry", "entity", entity, "microAppName", d.MicroAppName, "error", err)
			continue
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("encode manifest entry %s: %w", d.MicroAppName, err)
		}
		out[d.MicroAppName] = raw
	}
	return out, nil
}

// Update merges and persists in one step.
func (m *Merger) Update(ctx context.Context, entity, manifestPath string, descriptors []config.ComponentConfig, artifactDirFor ArtifactDirFunc) (Manifest, error) {
	out, err := m.Merge(ctx, entity, manifestPath, descriptors, artifactDirFor)
	if err != nil {
		return nil, err
	}
	if err := m.Persist(manifestPath, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Merger) entry(entity string, d config.ComponentConfig, dir string) (*Entry, error) {
	info, err := m.fs.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("read artifact directory %s: not a directory", dir)
	}
	infos, err := m.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory %s: %w", dir, err)
	}

	var js, css string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		name := info.Name()
		switch strings.ToLower(path.Ext(name)) {
		case ".js":
			if js == "" && (m.JSEntry == "" || strings.HasPrefix(name, m.JSEntry)) {
				js = name
			}
		case ".css":
			if css == "" {
				css = name
			}
		}
	}

	e := &Entry{Processor: d.Processor, RequiredAcls: d.RequiredAcls, UIType: d.UIType}
	if js != "" {
		e.URL = m.url(entity, d.MFName, js)
	}
	if css != "" {
		e.CSS = m.url(entity, d.MFName, css)
	}
	return e, nil
}

func (m *Merger) url(entity, mfName, file string) string {
	return m.Prefix + "/" + entity + "/" + mfName + "/" + file
}

// Persist writes manifest to name through a temporary file and a rename,
// so readers never observe a partial file.
func (m *Merger) Persist(name string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return persistError(name, err)
	}
	data = append(data, '\n')

	dir := path.Dir(name)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return persistError(name, err)
	}

	tmp, err := m.fs.TempFile(dir, "."+FileName+"-")
	if err != nil {
		return persistError(name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = m.fs.Remove(tmpName)
		return persistError(name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = m.fs.Remove(tmpName)
		return persistError(name, err)
	}
	if err := m.fs.Rename(tmpName, name); err != nil {
		_ = m.fs.Remove(tmpName)
		return persistError(name, err)
	}
	return nil
}

// Entry decodes the entry for key, or returns nil when it is absent or not
// an Entry-shaped object.
func (mf Manifest) Entry(key string) *Entry {
	raw, ok := mf[key]
	if !ok {
		return nil
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil
	}
	return &e
}

func persistError(name string, err error) error {
	return issue.NewErrorContext().
		WithOperation("write manifest").
		WithResource(name).
		WithIssue(issue.ManifestWriteFailedId).
		Wrap(err).
		Err()
}
