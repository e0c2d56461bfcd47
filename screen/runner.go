package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// CommandResult is what an external invocation leaves behind.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner invokes an external program synchronously in dir.
// A non-nil error means the program could not be run at all (not found,
// not executable, cancelled); a program that ran and failed reports a
// non-zero ExitCode instead.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) (CommandResult, error)
}

// ExecRunner runs commands with os/exec. There is no timeout: the call
// blocks until the program exits or ctx is cancelled.
type ExecRunner struct {
	Env  []string  // extra KEY=VALUE pairs appended to the parent environment
	Echo io.Writer // when set, the program's stdout and stderr are copied here as well
}

// Run implements CommandRunner.
func (r ExecRunner) Run(ctx context.Context, dir string, args ...string) (CommandResult, error) {
	if len(args) == 0 {
		return CommandResult{ExitCode: -1}, fmt.Errorf("%w: empty command", ErrExternalToolFailure)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	cmd.WaitDelay = 3 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if r.Echo != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.Echo)
		cmd.Stderr = io.MultiWriter(&stderr, r.Echo)
	}

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%w: %s: %w", ErrExternalToolFailure, args[0], err)
	}
	return res, nil
}

// CheckRun folds a Run result into a single error: nil on a zero exit
// status, an ErrExternalToolFailure otherwise.
func CheckRun(res CommandResult, err error, args []string) error {
	if err != nil {
		return err
	}
	if res.ExitCode == 0 {
		return nil
	}
	cmdline := strings.Join(args, " ")
	if tail := lastLines(res.Stderr, 5); tail != "" {
		return fmt.Errorf("%w: %q exited with status %d: %s", ErrExternalToolFailure, cmdline, res.ExitCode, tail)
	}
	return fmt.Errorf("%w: %q exited with status %d", ErrExternalToolFailure, cmdline, res.ExitCode)
}

// ExpandArgs substitutes {name} placeholders in every argument.
func ExpandArgs(args []string, vars map[string]string) []string {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	rep := strings.NewReplacer(pairs...)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = rep.Replace(a)
	}
	return out
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
