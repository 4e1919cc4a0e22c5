// Package docker builds and publishes container images via the docker CLI.
package docker

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/ecs-deployer/internal/execx"
)

// BuildOptions describes a single image build.
type BuildOptions struct {
	Ref        string // full repository:tag reference
	Dockerfile string
	Context    string
	Labels     map[string]string
	BuildArgs  map[string]string
}

// Client wraps the docker CLI.
type Client struct {
	runner execx.Runner
}

// New creates a docker Client backed by the given runner.
func New(runner execx.Runner) *Client {
	return &Client{runner: runner}
}

// Build runs docker build for the given options.
func (c *Client) Build(ctx context.Context, opts BuildOptions) error {
	logger := zerolog.Ctx(ctx)

	if err := validateRef(opts.Ref); err != nil {
		return err
	}

	dockerfile := opts.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	contextPath := opts.Context
	if contextPath == "" {
		contextPath = "."
	}

	if !c.runner.DryRun {
		if st, err := os.Stat(dockerfile); err != nil || st.IsDir() {
			return fmt.Errorf("dockerfile %q not found or not a file", dockerfile)
		}
		if st, err := os.Stat(contextPath); err != nil || !st.IsDir() {
			return fmt.Errorf("build context %q not found or not a directory", contextPath)
		}
	}

	logger.Info().
		Str("ref", opts.Ref).
		Str("dockerfile", dockerfile).
		Str("context", contextPath).
		Msg("building image")

	args := buildArgs(opts.Ref, dockerfile, contextPath, opts.Labels, opts.BuildArgs)
	return c.runner.Run(ctx, "docker", args...)
}

// Push pushes the given reference.
func (c *Client) Push(ctx context.Context, ref string) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("ref", ref).Msg("pushing image")
	return c.runner.Run(ctx, "docker", "push", ref)
}

// Login authenticates against a registry, feeding the password on stdin so
// it never appears in process listings.
func (c *Client) Login(ctx context.Context, registry, username, password string) error {
	zerolog.Ctx(ctx).Info().Str("registry", registry).Msg("logging into registry")
	return c.runner.RunStdin(ctx, strings.NewReader(password),
		"docker", "login", "--username", username, "--password-stdin", registry)
}

// Logout logs out of the registry. Failures are logged, not returned; a
// failed logout never aborts a deploy.
func (c *Client) Logout(ctx context.Context, registry string) {
	if err := c.runner.Run(ctx, "docker", "logout", registry); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("registry", registry).Msg("docker logout failed")
	}
}

// buildArgs assembles the docker build argument list. Kept separate from
// Build so tests can assert on the exact command line.
func buildArgs(ref, dockerfile, contextPath string, labels, buildArgs map[string]string) []string {
	args := []string{"build", "--progress=plain", "-t", ref, "-f", dockerfile}

	for _, k := range slices.Sorted(maps.Keys(labels)) {
		args = append(args, "--label", k+"="+labels[k])
	}
	for _, k := range slices.Sorted(maps.Keys(buildArgs)) {
		args = append(args, "--build-arg", k+"="+buildArgs[k])
	}

	return append(args, contextPath)
}

// validateRef rejects references docker itself would refuse.
func validateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("image ref is required")
	}
	if strings.ToLower(ref) != ref || strings.ContainsAny(ref, " \t\n") {
		return fmt.Errorf("invalid image ref %q (must be lowercase, no spaces)", ref)
	}
	return nil
}
