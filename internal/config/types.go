// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// FailureStopScheduling lets in-flight operations finish but starts no new ones.
	FailureStopScheduling FailurePolicy = "stop-scheduling"
	// FailureCancelInFlight also cancels the context of in-flight operations.
	FailureCancelInFlight FailurePolicy = "cancel-in-flight"
	// FailureContinue runs every operation and reports all failures.
	FailureContinue FailurePolicy = "continue"

	// RuntimeNative runs component commands through the host sh.
	RuntimeNative RuntimeMode = "native"
	// RuntimeVirtual runs component commands in the embedded mvdan/sh interpreter.
	RuntimeVirtual RuntimeMode = "virtual"
)

var (
	// ErrInvalidFailurePolicy is returned when a FailurePolicy value is not recognized.
	ErrInvalidFailurePolicy = errors.New("invalid failure policy")
	// ErrInvalidRuntimeMode is returned when a RuntimeMode value is not recognized.
	ErrInvalidRuntimeMode = errors.New("invalid runtime mode")
	// ErrNoEntities is returned when the global configuration lists no entities.
	ErrNoEntities = errors.New("missing entities")
	// ErrDuplicateEntity is the sentinel wrapped by DuplicateEntityError.
	ErrDuplicateEntity = errors.New("duplicate entity")
	// ErrMissingComponentField is the sentinel wrapped by MissingComponentFieldError.
	ErrMissingComponentField = errors.New("missing component field")
)

type (
	// FailurePolicy decides what the executor does after the first failed operation.
	FailurePolicy string

	// InvalidFailurePolicyError wraps ErrInvalidFailurePolicy.
	InvalidFailurePolicyError struct {
		Value FailurePolicy
	}

	// RuntimeMode selects the shell used for component commands.
	RuntimeMode string

	// InvalidRuntimeModeError wraps ErrInvalidRuntimeMode.
	InvalidRuntimeModeError struct {
		Value RuntimeMode
	}

	// Entity is a logical grouping of components, immutable for a run.
	Entity struct {
		Name   string `json:"name"`
		Domain string `json:"domain,omitempty"`
		Prefix string `json:"prefix,omitempty"`
	}

	// Global is the decoded global configuration.
	Global struct {
		Entities []Entity `json:"entities"`
	}

	// DuplicateEntityError reports an entity name listed twice.
	DuplicateEntityError struct {
		Name  string
		First int
		Index int
	}

	// ComponentConfig is the metadata of one component, read from its marker file.
	ComponentConfig struct {
		MicroAppName string   `json:"microAppName"`
		Entity       string   `json:"entity"`
		UIType       string   `json:"uiType"`
		MFName       string   `json:"mfName"`
		Processor    string   `json:"processor"`
		RequiredAcls []string `json:"requiredAcls"`
	}

	// MissingComponentFieldError names the first missing field of a component marker.
	MissingComponentFieldError struct {
		Field     string
		Component string
		Hint      string
	}
)

func (e *InvalidFailurePolicyError) Error() string {
	return fmt.Sprintf("invalid failure policy %q (valid: %s, %s, %s)",
		e.Value, FailureStopScheduling, FailureCancelInFlight, FailureContinue)
}

func (e *InvalidFailurePolicyError) Unwrap() error { return ErrInvalidFailurePolicy }

// IsValid reports whether p is one of the known policies.
func (p FailurePolicy) IsValid() (bool, []error) {
	switch p {
	case FailureStopScheduling, FailureCancelInFlight, FailureContinue:
		return true, nil
	default:
		return false, []error{&InvalidFailurePolicyError{Value: p}}
	}
}

func (p FailurePolicy) String() string { return string(p) }

func (e *InvalidRuntimeModeError) Error() string {
	return fmt.Sprintf("invalid runtime mode %q (valid: %s, %s)", e.Value, RuntimeNative, RuntimeVirtual)
}

func (e *InvalidRuntimeModeError) Unwrap() error { return ErrInvalidRuntimeMode }

// IsValid reports whether m is a supported runtime.
func (m RuntimeMode) IsValid() (bool, []error) {
	switch m {
	case RuntimeNative, RuntimeVirtual:
		return true, nil
	default:
		return false, []error{&InvalidRuntimeModeError{Value: m}}
	}
}

func (m RuntimeMode) String() string { return string(m) }

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("entities[%d]: duplicate entity name %q (same as entities[%d])", e.Index, e.Name, e.First)
}

func (e *DuplicateEntityError) Unwrap() error { return ErrDuplicateEntity }

// Validate checks the constraints the schema cannot express.
func (g *Global) Validate() error {
	if len(g.Entities) == 0 {
		return ErrNoEntities
	}
	seen := make(map[string]int, len(g.Entities))
	for i, e := range g.Entities {
		if first, ok := seen[e.Name]; ok {
			return &DuplicateEntityError{Name: e.Name, First: first, Index: i}
		}
		seen[e.Name] = i
	}
	return nil
}

func (e *MissingComponentFieldError) Error() string {
	msg := fmt.Sprintf("missing %s in %s of %s app", e.Field, ComponentConfigFile, e.Component)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *MissingComponentFieldError) Unwrap() error { return ErrMissingComponentField }

// Validate checks every required field in a fixed order and reports the
// first one missing.
func (c *ComponentConfig) Validate(component string) error {
	checks := []struct {
		field string
		ok    bool
		hint  string
	}{
		{"microAppName", strings.TrimSpace(c.MicroAppName) != "", ""},
		{"entity", strings.TrimSpace(c.Entity) != "", ""},
		{"uiType", strings.TrimSpace(c.UIType) != "", "e.g. master, detail, new, edit, ..."},
		{"mfName", strings.TrimSpace(c.MFName) != "", ""},
		{"processor", strings.TrimSpace(c.Processor) != "", ""},
		{"requiredAcls", len(c.RequiredAcls) > 0, "at least one ACL"},
	}
	for _, check := range checks {
		if !check.ok {
			return &MissingComponentFieldError{Field: check.field, Component: component, Hint: check.hint}
		}
	}
	return nil
}
