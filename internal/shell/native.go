// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// NativeRunner runs scripts with the host `sh -c`.
type NativeRunner struct {
	// Shell overrides the shell binary. Empty means "sh".
	Shell string
}

// Run executes s.Command with `<shell> -c` in s.Dir. A non-zero exit comes
// back as a *CommandFailedError with the Result filled in; a start failure
// or a canceled ctx yields exit code 1.
func (r *NativeRunner) Run(ctx context.Context, s Script) (*Result, error) {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", s.Command)
	cmd.Dir = s.Dir
	cmd.Env = BuildEnv(s.Env)
	cmd.Stdout, cmd.Stderr = outputs(s, &stdout, &stderr)

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.ExitCode = 1
			return res, fmt.Errorf("%s: %w", s.Name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = ExitCode(exitErr.ExitCode())
			return finish(s, res)
		}
		res.ExitCode = 1
		return res, fmt.Errorf("%s: start %s: %w", s.Name, shell, err)
	}
	return res, nil
}
