package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/ecs-deployer/internal/config"
	"github.com/savaki/ecs-deployer/internal/dao/historydao"
	"github.com/savaki/ecs-deployer/internal/di"
)

func HistoryCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded deployments",
		Description: `List deployment history records from the history table.

By default the history of the configured app and env is shown, newest
first. With --latest, the most recent deployment of every app in the
environment is shown instead.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the project config file",
				Value:   config.DefaultFile,
			},
			&cli.StringFlag{
				Name:    "app",
				Aliases: []string{"a"},
				Usage:   "Application name",
			},
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"environment"},
				Usage:   "Environment name (dev, staging, prod)",
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "region",
				Usage:   "AWS region",
				EnvVars: []string{"AWS_REGION"},
			},
			&cli.StringFlag{
				Name:  "history-table",
				Usage: "DynamoDB table for deployment history",
			},
			&cli.BoolFlag{
				Name:  "latest",
				Usage: "Show the most recent deployment per app across the environment",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of records to print (0 prints all)",
			},
		},
		Action: func(c *cli.Context) error {
			return historyAction(c, logger)
		},
	}
}

func historyAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := logger.WithContext(c.Context)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	container, err := di.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	dao := di.MustGet[*historydao.DAO](container)

	var records []historydao.Record
	if c.Bool("latest") {
		records, err = dao.QueryLatest(ctx, cfg.Env)
	} else {
		records, err = dao.QueryByAppEnv(ctx, cfg.App, cfg.Env)
		// Sort keys are KSUIDs, so ascending query order is chronological.
		slices.Reverse(records)
	}
	if err != nil {
		return err
	}

	if limit := c.Int("limit"); limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	logger.Info().
		Str("app", cfg.App).
		Str("env", cfg.Env).
		Int("count", len(records)).
		Msg("deployment history")

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}
