// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Target: {
	name:     string & !=""
	workers:  int & >=1
	tags?:    [...string]
}
`

type target struct {
	Name    string   `json:"name"`
	Workers int      `json:"workers"`
	Tags    []string `json:"tags,omitempty"`
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("valid source", func(t *testing.T) {
		t.Parallel()

		got, err := Decode[target]([]byte(testSchema), []byte(`name: "web", workers: 2, tags: ["a"]`), "#Target")
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got.Name != "web" || got.Workers != 2 || len(got.Tags) != 1 {
			t.Errorf("Decode() = %+v, want {web 2 [a]}", got)
		}
	})

	t.Run("json source", func(t *testing.T) {
		t.Parallel()

		got, err := Decode[target]([]byte(testSchema), []byte(`{"name": "api", "workers": 3}`), "#Target")
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got.Name != "api" {
			t.Errorf("Name = %q, want api", got.Name)
		}
	})

	t.Run("constraint violation names the field", func(t *testing.T) {
		t.Parallel()

		_, err := Decode[target]([]byte(testSchema), []byte(`name: "web", workers: 0`), "#Target", WithFilename("maestro.cue"))
		if err == nil {
			t.Fatal("Decode() expected error")
		}
		if !strings.Contains(err.Error(), "maestro.cue") || !strings.Contains(err.Error(), "workers") {
			t.Errorf("error = %q, want file name and field", err)
		}
	})

	t.Run("oversized input", func(t *testing.T) {
		t.Parallel()

		_, err := Decode[target]([]byte(testSchema), []byte(`name: "web", workers: 1`), "#Target", WithMaxFileSize(4))
		if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
			t.Errorf("error = %v, want size error", err)
		}
	})

	t.Run("unknown definition", func(t *testing.T) {
		t.Parallel()

		_, err := Decode[target]([]byte(testSchema), []byte(`name: "web"`), "#Missing")
		if err == nil || !strings.Contains(err.Error(), "#Missing") {
			t.Errorf("error = %v, want missing definition", err)
		}
	})
}

func TestDecodeValue(t *testing.T) {
	t.Parallel()

	got, err := DecodeValue[target]([]byte(testSchema), map[string]any{"name": "toml", "workers": 4}, "#Target")
	if err != nil {
		t.Fatalf("DecodeValue() error = %v", err)
	}
	if got.Workers != 4 {
		t.Errorf("Workers = %d, want 4", got.Workers)
	}

	if _, err := DecodeValue[target]([]byte(testSchema), map[string]any{"name": 12, "workers": 1}, "#Target"); err == nil {
		t.Error("DecodeValue() expected type error")
	}
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	if err := FormatError(nil, "x.cue"); err != nil {
		t.Errorf("FormatError(nil) = %v, want nil", err)
	}

	err := FormatError(errors.New("boom"), "x.cue")
	if err == nil || err.Error() != "x.cue: boom" {
		t.Errorf("FormatError() = %v, want %q", err, "x.cue: boom")
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"name"}, "name"},
		{[]string{"entities", "0", "name"}, "entities[0].name"},
		{[]string{"a", "1", "2"}, "a[1][2]"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
