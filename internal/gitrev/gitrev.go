// Package gitrev resolves the current source revision via the git CLI.
package gitrev

import (
	"context"
	"fmt"
	"strings"

	"github.com/savaki/ecs-deployer/internal/errors"
	"github.com/savaki/ecs-deployer/internal/execx"
)

const shortLength = "12"

const dirtySuffix = "-dirty"

// Source reads revision information from a git checkout.
type Source struct {
	runner execx.Runner
}

// New creates a Source backed by the given runner.
func New(runner execx.Runner) *Source {
	return &Source{runner: runner}
}

// ShortRev returns the abbreviated commit hash of HEAD. When the worktree has
// uncommitted changes the hash carries a -dirty suffix so a rebuilt dirty
// tree never aliases a clean image tag.
func (s *Source) ShortRev(ctx context.Context) (string, error) {
	rev, err := s.runner.Output(ctx, "git", "rev-parse", "--short="+shortLength, "HEAD")
	if err != nil {
		if strings.Contains(err.Error(), "not a git repository") {
			return "", errors.ErrNotARepository
		}
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	dirty, err := s.isDirty(ctx)
	if err != nil {
		return "", err
	}
	if dirty {
		rev += dirtySuffix
	}

	return rev, nil
}

// CommitHash strips the dirty marker from a revision, leaving the plain
// abbreviated commit hash. Image tags keep the marker; anything recorded as
// a revision must not.
func CommitHash(rev string) string {
	return strings.TrimSuffix(rev, dirtySuffix)
}

func (s *Source) isDirty(ctx context.Context) (bool, error) {
	out, err := s.runner.Output(ctx, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to check worktree status: %w", err)
	}
	return out != "", nil
}
