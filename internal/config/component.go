// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"path"

	"github.com/mf-maestro/maestro/internal/cueutil"
	"github.com/mf-maestro/maestro/internal/issue"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// LoadComponent reads <dir>/maestro.app.cue from fs and validates it. name
// is the component name used in error messages.
func LoadComponent(fs billy.Filesystem, dir, name string) (*ComponentConfig, error) {
	file := path.Join(dir, ComponentConfigFile)

	data, err := util.ReadFile(fs, file)
	if err != nil {
		return nil, componentError(file, name, fmt.Errorf("missing config %s in %s app: %w", ComponentConfigFile, name, err))
	}

	cfg, err := ParseComponent(data, file, name)
	if err != nil {
		return nil, componentError(file, name, err)
	}
	return cfg, nil
}

// ParseComponent decodes a component marker and checks its required fields.
func ParseComponent(data []byte, filename, name string) (*ComponentConfig, error) {
	cfg, err := cueutil.Decode[ComponentConfig](schema, data, "#App",
		cueutil.WithFilename(filename),
		cueutil.WithConcrete(false))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(name); err != nil {
		return nil, err
	}
	return cfg, nil
}

func componentError(file, name string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load component configuration").
		WithResource(file).
		WithSuggestion(fmt.Sprintf("Check %s of %s", ComponentConfigFile, name)).
		WithIssue(issue.ComponentConfigInvalidId).
		Wrap(err).
		Err()
}
