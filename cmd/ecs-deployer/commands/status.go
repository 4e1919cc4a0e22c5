package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/ecs-deployer/internal/config"
	"github.com/savaki/ecs-deployer/internal/deploytag"
	"github.com/savaki/ecs-deployer/internal/di"
	"github.com/savaki/ecs-deployer/internal/pipeline"
	"github.com/savaki/ecs-deployer/internal/services"
)

// statusReport is the JSON document printed by the status command.
type statusReport struct {
	StackName       string            `json:"stack_name"`
	Status          string            `json:"status"`
	StatusReason    *string           `json:"status_reason,omitempty"`
	Failed          bool              `json:"failed"`
	Outputs         map[string]string `json:"outputs,omitempty"`
	Cluster         string            `json:"cluster,omitempty"`
	Service         string            `json:"service,omitempty"`
	TaskDefinition  string            `json:"task_definition,omitempty"`
	DeployedVersion string            `json:"deployed_version,omitempty"`
}

func StatusCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the state of the deployment stack and service",
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
				Name:  "deploy-tag",
				Usage: "Deployment tag (defaults to the tag file contents)",
			},
			&cli.StringFlag{
				Name:  "stack-name",
				Usage: "Stack name (overrides app and deploy-tag)",
			},
		},
		Action: func(c *cli.Context) error {
			return statusAction(c, logger)
		},
	}
}

func statusAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := logger.WithContext(c.Context)

	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}

	// An explicit stack name needs no app; deriving one from the tag does.
	stackName := c.String("stack-name")
	if stackName == "" {
		if err := cfg.Validate(); err != nil {
			return err
		}
		tag := c.String("deploy-tag")
		if tag == "" {
			tag, err = deploytag.Load(cfg.TagFile)
			if err != nil {
				return fmt.Errorf("no deployment tag available (deploy first or pass --deploy-tag): %w", err)
			}
		}
		stackName = cfg.StackName(tag)
	}

	container, err := di.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	stacks := di.MustGet[*services.StackService](container)

	status, err := stacks.Status(ctx, stackName)
	if err != nil {
		return err
	}

	if status.Failed {
		stacks.LogFailedEvents(ctx, stackName)
	}

	report := statusReport{
		StackName:    stackName,
		Status:       status.Status,
		StatusReason: status.StatusReason,
		Failed:       status.Failed,
	}

	outputs, err := stacks.Outputs(ctx, stackName)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read stack outputs")
	} else {
		report.Outputs = outputs
		report.Cluster = outputs[pipeline.OutputClusterName]
		report.Service = outputs[pipeline.OutputServiceName]
	}

	if report.Cluster != "" && report.Service != "" {
		ecsService := di.MustGet[*services.ECSService](container)
		arn, err := ecsService.ServiceTaskDefinition(ctx, report.Cluster, report.Service)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to read service task definition")
		} else {
			report.TaskDefinition = arn
		}
	}

	if cfg.App != "" {
		params := di.MustGet[*services.ParameterService](container)
		version, err := params.DeployedVersion(ctx, cfg.Env, cfg.App)
		if err != nil {
			logger.Debug().Err(err).Msg("no deployed version recorded")
		} else {
			report.DeployedVersion = version
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
