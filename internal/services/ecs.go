package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/rs/zerolog"
)

// ECSAPI is the subset of the ECS client used by ECSService.
type ECSAPI interface {
	RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
}

// ECSService registers task definitions and updates services.
type ECSService struct {
	client ECSAPI
}

// NewECSService creates an ECSService from an AWS config.
func NewECSService(cfg aws.Config) *ECSService {
	return &ECSService{client: ecs.NewFromConfig(cfg)}
}

// NewECSServiceWithClient creates an ECSService with an explicit API
// implementation. This is useful for testing.
func NewECSServiceWithClient(client ECSAPI) *ECSService {
	return &ECSService{client: client}
}

// RegisterTaskDefinition registers a task definition from its rendered JSON
// document and returns the new revision's ARN. The document is an ordinary
// ECS task definition; encoding/json matches the API's camelCase field names
// case-insensitively.
func (s *ECSService) RegisterTaskDefinition(ctx context.Context, document []byte) (string, error) {
	logger := zerolog.Ctx(ctx)

	var input ecs.RegisterTaskDefinitionInput
	if err := json.Unmarshal(document, &input); err != nil {
		return "", fmt.Errorf("failed to parse task definition: %w", err)
	}
	if input.Family == nil || aws.ToString(input.Family) == "" {
		return "", fmt.Errorf("task definition is missing a family")
	}
	if len(input.ContainerDefinitions) == 0 {
		return "", fmt.Errorf("task definition has no container definitions")
	}

	output, err := s.client.RegisterTaskDefinition(ctx, &input)
	if err != nil {
		return "", fmt.Errorf("failed to register task definition: %w", err)
	}

	arn := aws.ToString(output.TaskDefinition.TaskDefinitionArn)
	logger.Info().
		Str("family", aws.ToString(input.Family)).
		Str("task_definition_arn", arn).
		Msg("registered task definition")
	return arn, nil
}

// UpdateService points the service at the given task definition revision and
// forces a new deployment.
func (s *ECSService) UpdateService(ctx context.Context, cluster, service, taskDefinitionARN string) error {
	logger := zerolog.Ctx(ctx)

	_, err := s.client.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(cluster),
		Service:            aws.String(service),
		TaskDefinition:     aws.String(taskDefinitionARN),
		ForceNewDeployment: true,
	})
	if err != nil {
		return fmt.Errorf("failed to update service %s/%s: %w", cluster, service, err)
	}

	logger.Info().
		Str("cluster", cluster).
		Str("service", service).
		Str("task_definition_arn", taskDefinitionARN).
		Msg("service updated")
	return nil
}

// ServiceTaskDefinition returns the task definition the service currently
// runs.
func (s *ECSService) ServiceTaskDefinition(ctx context.Context, cluster, service string) (string, error) {
	output, err := s.client.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{service},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe service %s/%s: %w", cluster, service, err)
	}
	if len(output.Services) == 0 {
		return "", fmt.Errorf("service %s not found in cluster %s", service, cluster)
	}
	return aws.ToString(output.Services[0].TaskDefinition), nil
}
