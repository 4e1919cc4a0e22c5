package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"

	"github.com/savaki/ecs-deployer/internal/config"
	"github.com/savaki/ecs-deployer/internal/dao/historydao"
	"github.com/savaki/ecs-deployer/internal/deploytag"
	"github.com/savaki/ecs-deployer/internal/di"
	"github.com/savaki/ecs-deployer/internal/gitrev"
	"github.com/savaki/ecs-deployer/internal/pipeline"
	"github.com/savaki/ecs-deployer/internal/utils"
)

func DeployCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Build, push, and deploy the application",
		Description: `Run the full deployment workflow.

The deployment stack is keyed by a short random tag cached in the local
tag file; delete the file to target a fresh stack. The image tag is the
abbreviated commit hash of HEAD. The stack template must export
ClusterName and ServiceName outputs naming the ECS cluster and service.`,
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
				Name:  "template",
				Usage: "CloudFormation template: local path or s3:// URI",
			},
			&cli.StringFlag{
				Name:  "task-template",
				Usage: "Task definition JSON template path",
			},
			&cli.StringSliceFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "CloudFormation parameter override Key=Value (can be specified multiple times)",
			},
			&cli.StringSliceFlag{
				Name:  "token",
				Usage: "Task template token value KEY=value (can be specified multiple times)",
			},
			&cli.StringFlag{
				Name:  "history-table",
				Usage: "DynamoDB table for deployment history (defaults to {env}-ecs-deployer-history)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print external commands without executing them",
			},
		},
		Action: func(c *cli.Context) error {
			return deployAction(c, logger)
		},
	}
}

func deployAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := logger.WithContext(c.Context)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	container, err := di.New(cfg, di.WithDryRun(c.Bool("dry-run")))
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}

	tag, err := deploytag.LoadOrCreate(cfg.TagFile)
	if err != nil {
		return err
	}

	rev, err := di.MustGet[*gitrev.Source](container).ShortRev(ctx)
	if err != nil {
		return fmt.Errorf("failed to determine image tag: %w", err)
	}

	logger.Info().
		Str("app", cfg.App).
		Str("env", cfg.Env).
		Str("deploy_tag", tag).
		Str("image_tag", rev).
		Msg("starting deployment")

	commitHash := gitrev.CommitHash(rev)
	input := pipeline.Input{
		DeployTag:  tag,
		ImageTag:   rev,
		CommitHash: commitHash,
	}

	dao := di.MustGet[*historydao.DAO](container)
	sk := ksuid.New().String()
	if _, err := dao.Create(ctx, historydao.CreateInput{
		App:        cfg.App,
		Env:        cfg.Env,
		SK:         sk,
		DeployTag:  tag,
		Version:    rev,
		CommitHash: commitHash,
		StackName:  cfg.StackName(tag),
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to create history record")
		dao = nil
	} else {
		status := historydao.StatusInProgress
		if err := dao.UpdateStatus(ctx, historydao.UpdateInput{
			PK:     historydao.NewPK(cfg.App, cfg.Env),
			SK:     sk,
			Status: &status,
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to mark history record in progress")
		}
	}

	result, err := di.MustGet[*pipeline.Pipeline](container).Run(ctx, input)
	recordOutcome(ctx, dao, cfg, sk, result, err)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// recordOutcome updates the history record to its terminal status.
// Best-effort; history must never fail a deploy or mask its error.
func recordOutcome(ctx context.Context, dao *historydao.DAO, cfg *config.Config, sk string, result *pipeline.Result, runErr error) {
	if dao == nil {
		return
	}

	if err := dao.UpdateStatus(ctx, terminalUpdate(cfg, sk, result, runErr)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to update history record")
	}
}

// terminalUpdate builds the final status update for a deploy run. A success
// carries the image URI the pipeline produced; a failure carries the error.
func terminalUpdate(cfg *config.Config, sk string, result *pipeline.Result, runErr error) historydao.UpdateInput {
	status := historydao.StatusSuccess
	var errMsg *string
	if runErr != nil {
		status = historydao.StatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	input := historydao.UpdateInput{
		PK:       historydao.NewPK(cfg.App, cfg.Env),
		SK:       sk,
		Status:   &status,
		ErrorMsg: errMsg,
	}
	if result != nil {
		input.ImageURI = result.ImageURI
	}
	return input
}

// loadConfig merges the config file with flag overrides and validates the
// result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := resolveConfig(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfig merges the config file with flag overrides without
// validating. Commands that can name their target directly skip validation.
func resolveConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if v := c.String("app"); v != "" {
		cfg.App = v
	}
	if v := c.String("env"); v != "" {
		cfg.Env = v
	}
	if v := c.String("region"); v != "" {
		cfg.Region = v
	}
	if v := c.String("template"); v != "" {
		cfg.Template = v
	}
	if v := c.String("task-template"); v != "" {
		cfg.TaskTemplate = v
	}
	if v := c.String("history-table"); v != "" {
		cfg.HistoryTable = v
	}

	if pairs := c.StringSlice("param"); len(pairs) != 0 {
		overrides, err := utils.ParseKeyValues(pairs)
		if err != nil {
			return nil, err
		}
		if cfg.Parameters == nil {
			cfg.Parameters = map[string]string{}
		}
		for k, v := range overrides {
			cfg.Parameters[k] = v
		}
	}
	if pairs := c.StringSlice("token"); len(pairs) != 0 {
		overrides, err := utils.ParseKeyValues(pairs)
		if err != nil {
			return nil, err
		}
		if cfg.TokenValues == nil {
			cfg.TokenValues = map[string]string{}
		}
		for k, v := range overrides {
			cfg.TokenValues[k] = v
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}
