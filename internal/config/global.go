// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mf-maestro/maestro/internal/cueutil"
	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigBase is the global configuration file name without extension.
	GlobalConfigBase = "maestro"
	// ComponentConfigFile marks a directory as a maestro component.
	ComponentConfigFile = "maestro.app.cue"
	// PackageDescriptor must sit next to ComponentConfigFile.
	PackageDescriptor = "package.json"
)

// GlobalConfigExtensions lists the accepted global config formats in lookup order.
var GlobalConfigExtensions = []string{".cue", ".json", ".toml", ".yaml", ".yml"}

// ErrGlobalConfigNotFound is returned when no global configuration exists.
var ErrGlobalConfigNotFound = errors.New("global configuration not found")

//go:embed schema.cue
var schema []byte

// FindGlobal returns the first maestro.<ext> present in dir.
func FindGlobal(dir string) (string, error) {
	for _, ext := range GlobalConfigExtensions {
		path := filepath.Join(dir, GlobalConfigBase+ext)
		if fileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (tried %s.{cue,json,toml,yaml})", ErrGlobalConfigNotFound, dir, GlobalConfigBase)
}

// LoadGlobal reads and validates the global configuration at path.
func LoadGlobal(path string) (*Global, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrGlobalConfigNotFound, path)
		}
		return nil, issue.NewErrorContext().
			WithOperation("load global configuration").
			WithResource(path).
			WithIssue(issue.GlobalConfigNotFoundId).
			Wrap(err).
			Err()
	}

	g, err := ParseGlobal(data, path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load global configuration").
			WithResource(path).
			WithSuggestion("Declare at least one entity: entities: [{name: \"billing\"}]").
			WithIssue(issue.GlobalConfigInvalidId).
			Wrap(err).
			Err()
	}
	return g, nil
}

// ParseGlobal decodes data according to the extension of filename. CUE and
// JSON are compiled directly; TOML and YAML are decoded to a map first. All
// formats go through the same #Global schema.
func ParseGlobal(data []byte, filename string) (*Global, error) {
	opts := []cueutil.Option{cueutil.WithFilename(filename)}

	var (
		g   *Global
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".cue":
		g, err = cueutil.Decode[Global](schema, data, "#Global", opts...)
	case ".json":
		if !json.Valid(data) {
			return nil, fmt.Errorf("%s: invalid JSON", filename)
		}
		g, err = cueutil.Decode[Global](schema, data, "#Global", opts...)
	case ".toml":
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		g, err = cueutil.DecodeValue[Global](schema, m, "#Global", opts...)
	case ".yaml", ".yml":
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		if m == nil {
			m = map[string]any{}
		}
		g, err = cueutil.DecodeValue[Global](schema, m, "#Global", opts...)
	default:
		return nil, fmt.Errorf("%s: unsupported configuration format %q", filename, ext)
	}
	if err != nil {
		return nil, err
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return g, nil
}

// SingleEntity is the configuration used when an entity is named on the
// command line; no global file is read.
func SingleEntity(name string) *Global {
	return &Global{Entities: []Entity{{Name: name}}}
}

// ResolveEntities returns the entities of a run. A non-empty entity
// bypasses the global configuration. Otherwise explicitPath is loaded, or
// the global file is looked up in dir.
func ResolveEntities(dir, explicitPath, entity string) ([]Entity, error) {
	if entity != "" {
		return SingleEntity(entity).Entities, nil
	}

	path := explicitPath
	if path == "" {
		found, err := FindGlobal(dir)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("find global configuration").
				WithResource(dir).
				WithSuggestion("Create maestro.cue with an entities list").
				WithSuggestion("Or pass --entity to build a single entity").
				WithIssue(issue.GlobalConfigNotFoundId).
				Wrap(err).
				Err()
		}
		path = found
	}

	g, err := LoadGlobal(path)
	if err != nil {
		return nil, err
	}
	return g.Entities, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
