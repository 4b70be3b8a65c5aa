// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRunner interprets scripts with mvdan/sh. Builtins such as cd,
// echo and test run in-process; other programs are started from PATH.
type VirtualRunner struct{}

// Run parses s.Command as POSIX shell and interprets it in s.Dir. Parse
// errors are returned before anything runs; exit codes are reported the
// same way as NativeRunner.Run.
func (r *VirtualRunner) Run(ctx context.Context, s Script) (*Result, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(s.Command), s.Name)
	if err != nil {
		return &Result{ExitCode: 1}, fmt.Errorf("%s: failed to parse script: %w", s.Name, err)
	}

	var stdout, stderr bytes.Buffer
	out, errOut := outputs(s, &stdout, &stderr)

	runner, err := interp.New(
		interp.Dir(s.Dir),
		interp.Env(expand.ListEnviron(BuildEnv(s.Env)...)),
		interp.StdIO(nil, out, errOut),
	)
	if err != nil {
		return &Result{ExitCode: 1}, fmt.Errorf("%s: failed to create interpreter: %w", s.Name, err)
	}

	err = runner.Run(ctx, prog)
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			res.ExitCode = ExitCode(exitStatus)
			return finish(s, res)
		}
		res.ExitCode = 1
		return res, fmt.Errorf("%s: script execution failed: %w", s.Name, err)
	}
	return res, nil
}
