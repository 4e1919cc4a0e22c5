// Package execx runs external commands with inherited output, dry-run
// support, and exit-status extraction on failure.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
)

// Runner executes external commands. DryRun logs commands instead of
// executing them.
type Runner struct {
	DryRun bool
}

// Run executes the command with stdout/stderr inherited from the process.
func (r Runner) Run(ctx context.Context, name string, args ...string) error {
	return r.run(ctx, nil, os.Stdout, name, args...)
}

// RunStdin executes the command feeding the given reader to its stdin.
func (r Runner) RunStdin(ctx context.Context, stdin io.Reader, name string, args ...string) error {
	return r.run(ctx, stdin, os.Stdout, name, args...)
}

// Output executes the command and returns its trimmed stdout.
func (r Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	var buf bytes.Buffer
	if err := r.run(ctx, nil, &buf, name, args...); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (r Runner) run(ctx context.Context, stdin io.Reader, stdout io.Writer, name string, args ...string) error {
	logger := zerolog.Ctx(ctx)
	fullCmd := name + " " + quoteArgs(args)

	if r.DryRun {
		logger.Info().Msgf("DRY RUN: %s", fullCmd)
		return nil
	}

	logger.Info().Msgf("Running: %s", fullCmd)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				return fmt.Errorf("command failed (exit=%d): %s: %w", status.ExitStatus(), fullCmd, err)
			}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("command canceled: %s", fullCmd)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("command timed out: %s", fullCmd)
		}
		return fmt.Errorf("failed to run command: %s: %w", fullCmd, err)
	}
	return nil
}

// quoteArgs returns a printable, shell-safe representation of args.
func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'`$\\*?[]{}()<>|&;") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
