package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/ecs-deployer/internal/config"
	"github.com/savaki/ecs-deployer/internal/di"
	"github.com/savaki/ecs-deployer/internal/services"
)

func SetupRegistryCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "setup-registry",
		Usage: "Create the ECR repository for the application",
		Description: `Ensure the ECR repository exists, with scan-on-push and tag immutability.

The repository name defaults to {app}/{env}. If the AWS account belongs
to an organization, org-wide read permissions are configured
automatically. Creation is idempotent: an existing repository is reused
untouched.`,
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
				Usage:   "AWS region for the repository",
				EnvVars: []string{"AWS_REGION"},
			},
			&cli.StringFlag{
				Name:    "role-name",
				Aliases: []string{"n"},
				Usage:   "IAM role name to grant ECR push permissions",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be created without creating resources",
			},
		},
		Action: func(c *cli.Context) error {
			return setupRegistryAction(c, logger)
		},
	}
}

func setupRegistryAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := logger.WithContext(c.Context)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	roleName := c.String("role-name")
	if roleName == "" {
		roleName = cfg.PushRole
	}
	repositoryName := cfg.RepositoryName()

	if c.Bool("dry-run") {
		logger.Info().Msg("DRY RUN: Would ensure the following ECR repository:")
		logger.Info().Msgf("  - %s (region: %s)", repositoryName, cfg.Region)
		logger.Info().Msg("DRY RUN: Would enable:")
		logger.Info().Msg("  - Scan on push")
		logger.Info().Msg("  - Tag immutability")
		logger.Info().Msg("DRY RUN: Would check for AWS Organization and set org-wide read permissions if applicable")
		if roleName != "" {
			logger.Info().Msgf("DRY RUN: Would add ECR push permissions to IAM role: %s", roleName)
		}
		return nil
	}

	container, err := di.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	ecrService := di.MustGet[*services.ECRService](container)

	logger.Info().Msg("Checking if AWS account is in an organization...")
	orgID, err := ecrService.GetOrganizationID(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to check organization status (will skip org-wide permissions)")
		orgID = ""
	}

	repo, err := ecrService.EnsureRepository(ctx, repositoryName)
	if err != nil {
		return err
	}

	if orgID != "" {
		logger.Info().Msgf("Setting org-wide read permissions for organization %s...", orgID)
		if err := ecrService.SetRepositoryPolicy(ctx, repositoryName, orgID); err != nil {
			logger.Warn().Err(err).Msg("Failed to set org-wide policy (repository still usable)")
		}
	}

	if roleName != "" {
		iamService := di.MustGet[*services.IAMService](container)
		if err := iamService.AddECRPushPermissions(ctx, roleName, []string{repo.ARN}); err != nil {
			return fmt.Errorf("failed to add ECR permissions to role: %w", err)
		}
	}

	accountID, err := ecrService.GetAccountID(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to get account ID")
		accountID = "unknown"
	}

	logger.Info().Msg("")
	logger.Info().Msg("========================================")
	logger.Info().Msg("Registry Setup Complete!")
	logger.Info().Msg("========================================")
	logger.Info().Msgf("Region:      %s", cfg.Region)
	logger.Info().Msgf("Account:     %s", accountID)
	logger.Info().Msgf("Repository:  %s", repo.Name)
	logger.Info().Msgf("URI:         %s", repo.URI)
	if orgID != "" {
		logger.Info().Msg("  ✓ Org-wide read permissions")
	}
	if roleName != "" {
		logger.Info().Msgf("  ✓ IAM role %s has ECR push permissions", roleName)
	}

	return nil
}
