// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mf-maestro/maestro/internal/issue"
	"github.com/mf-maestro/maestro/internal/testutil"

	"github.com/google/go-cmp/cmp"
)

func TestParseGlobal_Formats(t *testing.T) {
	t.Parallel()

	want := &Global{Entities: []Entity{
		{Name: "billing"},
		{Name: "customers", Domain: "crm", Prefix: "/assets"},
	}}

	tests := []struct {
		file string
		data string
	}{
		{"maestro.cue", `
entities: [
	{name: "billing"},
	{name: "customers", domain: "crm", prefix: "/assets"},
]`},
		{"maestro.json", `{"entities": [{"name": "billing"}, {"name": "customers", "domain": "crm", "prefix": "/assets"}]}`},
		{"maestro.toml", `
[[entities]]
name = "billing"

[[entities]]
name = "customers"
domain = "crm"
prefix = "/assets"
`},
		{"maestro.yaml", `
entities:
  - name: billing
  - name: customers
    domain: crm
    prefix: /assets
`},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()
			got, err := ParseGlobal([]byte(tt.data), tt.file)
			if err != nil {
				t.Fatalf("ParseGlobal() error = %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("ParseGlobal() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseGlobal_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		data    string
		wantIs  error
		wantSub string
	}{
		{"missing entities", "maestro.cue", `other: 1`, nil, "other"},
		{"empty entities", "maestro.json", `{"entities": []}`, ErrNoEntities, ""},
		{"no entities key in yaml", "maestro.yaml", ``, ErrNoEntities, ""},
		{"duplicate names", "maestro.cue", `entities: [{name: "a"}, {name: "a"}]`, ErrDuplicateEntity, `"a"`},
		{"empty name", "maestro.cue", `entities: [{name: ""}]`, nil, "entities[0].name"},
		{"invalid json", "maestro.json", `{"entities": [`, nil, "invalid JSON"},
		{"invalid toml", "maestro.toml", `entities = [`, nil, "maestro.toml"},
		{"unknown format", "maestro.ini", `x=1`, nil, "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseGlobal([]byte(tt.data), tt.file)
			if err == nil {
				t.Fatal("ParseGlobal() expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantIs)
			}
			if tt.wantSub != "" && !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestFindGlobal_Order(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := FindGlobal(dir); !errors.Is(err, ErrGlobalConfigNotFound) {
		t.Fatalf("FindGlobal() error = %v, want ErrGlobalConfigNotFound", err)
	}

	testutil.MustWriteFile(t, filepath.Join(dir, "maestro.yaml"), "entities: [{name: a}]")
	testutil.MustWriteFile(t, filepath.Join(dir, "maestro.json"), `{"entities": [{"name": "a"}]}`)

	got, err := FindGlobal(dir)
	if err != nil {
		t.Fatalf("FindGlobal() error = %v", err)
	}
	if want := filepath.Join(dir, "maestro.json"); got != want {
		t.Errorf("FindGlobal() = %q, want %q", got, want)
	}
}

func TestResolveEntities(t *testing.T) {
	t.Parallel()

	t.Run("entity flag bypasses global file", func(t *testing.T) {
		t.Parallel()
		got, err := ResolveEntities(t.TempDir(), "", "billing")
		if err != nil {
			t.Fatalf("ResolveEntities() error = %v", err)
		}
		if diff := cmp.Diff([]Entity{{Name: "billing"}}, got); diff != "" {
			t.Errorf("ResolveEntities() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing global file", func(t *testing.T) {
		t.Parallel()
		_, err := ResolveEntities(t.TempDir(), "", "")
		if got := issue.IDOf(err); got != issue.GlobalConfigNotFoundId {
			t.Errorf("IDOf() = %d, want %d (err: %v)", got, issue.GlobalConfigNotFoundId, err)
		}
	})

	t.Run("explicit path", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "custom.cue")
		testutil.MustWriteFile(t, path, `entities: [{name: "x"}, {name: "y"}]`)

		got, err := ResolveEntities(t.TempDir(), path, "")
		if err != nil {
			t.Fatalf("ResolveEntities() error = %v", err)
		}
		if len(got) != 2 || got[0].Name != "x" || got[1].Name != "y" {
			t.Errorf("ResolveEntities() = %v, want [x y] in config order", got)
		}
	})

	t.Run("invalid global file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		testutil.MustWriteFile(t, filepath.Join(dir, "maestro.cue"), `entities: []`)

		_, err := ResolveEntities(dir, "", "")
		if got := issue.IDOf(err); got != issue.GlobalConfigInvalidId {
			t.Errorf("IDOf() = %d, want %d", got, issue.GlobalConfigInvalidId)
		}
		if !errors.Is(err, ErrNoEntities) {
			t.Errorf("errors.Is(err, ErrNoEntities) = false: %v", err)
		}
	})
}
