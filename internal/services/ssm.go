package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog"
)

// SSMAPI is the subset of the SSM client used by ParameterService.
type SSMAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterService records deployment metadata in SSM Parameter Store.
type ParameterService struct {
	client SSMAPI
}

// NewParameterService creates a ParameterService from an AWS config.
func NewParameterService(cfg aws.Config) *ParameterService {
	return &ParameterService{client: ssm.NewFromConfig(cfg)}
}

// NewParameterServiceWithClient creates a ParameterService with an explicit
// API implementation. This is useful for testing.
func NewParameterServiceWithClient(client SSMAPI) *ParameterService {
	return &ParameterService{client: client}
}

func versionPath(env, app string) string {
	return fmt.Sprintf("/%s/ecs-deployer/deployed-version/%s", env, app)
}

// RecordDeployedVersion stores the deployed image tag so other tooling can
// discover what is running without listing cloud resources.
func (s *ParameterService) RecordDeployedVersion(ctx context.Context, env, app, version string) error {
	logger := zerolog.Ctx(ctx)

	path := versionPath(env, app)
	logger.Info().
		Str("ssm_path", path).
		Str("version", version).
		Msg("recording deployed version in SSM")

	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:        aws.String(path),
		Value:       aws.String(version),
		Type:        types.ParameterTypeString,
		Overwrite:   aws.Bool(true),
		Description: aws.String(fmt.Sprintf("Deployed version of %s in %s environment", app, env)),
	})
	if err != nil {
		return fmt.Errorf("failed to record deployed version in SSM: %w", err)
	}

	return nil
}

// DeployedVersion returns the last recorded deployed version for the app.
func (s *ParameterService) DeployedVersion(ctx context.Context, env, app string) (string, error) {
	output, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(versionPath(env, app)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read deployed version from SSM: %w", err)
	}
	return aws.ToString(output.Parameter.Value), nil
}
