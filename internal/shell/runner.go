// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/mf-maestro/maestro/internal/config"
)

// ErrCommandFailed is the sentinel wrapped by CommandFailedError.
var ErrCommandFailed = errors.New("command failed")

type (
	// Script is one command line to run in a directory.
	Script struct {
		// Name labels the script in errors, usually "entity/component".
		Name string
		// Dir is the working directory.
		Dir string
		// Command is a POSIX shell command line.
		Command string
		// Env is added on top of the process environment, KEY=VALUE.
		Env []string
		// Stream, when set, receives stdout and stderr as they are produced.
		Stream io.Writer
	}

	// Result is the captured output of a finished script.
	Result struct {
		Stdout   string
		Stderr   string
		ExitCode ExitCode
	}

	// Runner runs a Script to completion. A non-zero exit status is
	// reported as a *CommandFailedError alongside the Result.
	Runner interface {
		Run(ctx context.Context, s Script) (*Result, error)
	}

	// CommandFailedError reports a script that exited non-zero.
	CommandFailedError struct {
		Name     string
		Command  string
		ExitCode ExitCode
		Stderr   string
	}
)

func (e *CommandFailedError) Error() string {
	msg := fmt.Sprintf("%s: %q exited with status %s", e.Name, e.Command, e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *CommandFailedError) Unwrap() error { return ErrCommandFailed }

// New returns the runner for mode.
func New(mode config.RuntimeMode) (Runner, error) {
	switch mode {
	case config.RuntimeNative, "":
		return &NativeRunner{}, nil
	case config.RuntimeVirtual:
		return &VirtualRunner{}, nil
	default:
		return nil, &config.InvalidRuntimeModeError{Value: mode}
	}
}

// BuildEnv appends overrides to the process environment. Later entries win,
// so a KEY in overrides replaces the inherited one.
func BuildEnv(overrides []string) []string {
	env := slices.Clone(os.Environ())
	keep := env[:0]
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if !slices.ContainsFunc(overrides, func(o string) bool { return strings.HasPrefix(o, key+"=") }) {
			keep = append(keep, kv)
		}
	}
	return append(keep, overrides...)
}

func finish(s Script, res *Result) (*Result, error) {
	if res.ExitCode.IsSuccess() {
		return res, nil
	}
	return res, &CommandFailedError{Name: s.Name, Command: s.Command, ExitCode: res.ExitCode, Stderr: res.Stderr}
}

func outputs(s Script, stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if s.Stream == nil {
		return stdout, stderr
	}
	return io.MultiWriter(stdout, s.Stream), io.MultiWriter(stderr, s.Stream)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
