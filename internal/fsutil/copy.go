// SPDX-License-Identifier: MPL-2.0

package fsutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Stats counts what a copy transferred.
type Stats struct {
	Files int
	Bytes int64
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Files += o.Files
	s.Bytes += o.Bytes
}

// CopyTree copies srcDir on src to dstDir on dst. Paths relative to srcDir
// matching any doublestar pattern in exclude are skipped; an excluded
// directory is not descended into. Non-regular files are ignored.
func CopyTree(ctx context.Context, src billy.Filesystem, srcDir string, dst billy.Filesystem, dstDir string, exclude []string) (Stats, error) {
	for _, pat := range exclude {
		if !doublestar.ValidatePattern(pat) {
			return Stats{}, fmt.Errorf("invalid exclude pattern %q", pat)
		}
	}

	var stats Stats
	err := util.Walk(src, srcDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := relative(srcDir, p)
		if rel != "." && Excluded(rel, exclude) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := path.Join(dstDir, rel)
		switch {
		case info.IsDir():
			return dst.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			n, err := copyFile(src, p, dst, target, info.Mode().Perm())
			if err != nil {
				return err
			}
			stats.Files++
			stats.Bytes += n
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("copy %s to %s: %w", srcDir, dstDir, err)
	}
	return stats, nil
}

// Excluded reports whether rel, or any of its parent directories, matches
// one of the patterns.
func Excluded(rel string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pat+"/**", rel); ok {
			return true
		}
	}
	return false
}

// RemoveAll deletes name and its children; a missing name is not an error.
func RemoveAll(fs billy.Filesystem, name string) error {
	if _, err := fs.Lstat(name); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return util.RemoveAll(fs, name)
}

func copyFile(src billy.Filesystem, from string, dst billy.Filesystem, to string, perm os.FileMode) (int64, error) {
	in, err := src.Open(from)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := dst.MkdirAll(path.Dir(to), 0o755); err != nil {
		return 0, err
	}
	out, err := dst.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func relative(base, p string) string {
	base = path.Clean(filepath.ToSlash(base))
	p = path.Clean(filepath.ToSlash(p))
	if base == "." {
		return p
	}
	rel := strings.TrimPrefix(p, base)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return "."
	}
	return rel
}
