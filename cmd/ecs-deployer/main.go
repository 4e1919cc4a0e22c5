package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/savaki/ecs-deployer/cmd/ecs-deployer/commands"
	"github.com/savaki/ecs-deployer/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	// Local overrides for dev runs; harmless in CI.
	_ = godotenv.Load()

	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "ecs-deployer",
		Usage: "Deploy containerized applications to ECS",
		Description: `Deploys a containerized application to AWS ECS.

The deploy command runs the full workflow: ensure the ECR repository
exists, build and push the image, create or update the CloudFormation
stack keyed by the locally cached deployment tag, register a new task
definition, and point the service at it. Re-running after a failure is
safe; provisioning steps are idempotent.`,
		Commands: []*cli.Command{
			commands.DeployCommand(&logger),
			commands.SetupRegistryCommand(&logger),
			commands.StatusCommand(&logger),
			commands.HistoryCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
