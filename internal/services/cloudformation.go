package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	ierrors "github.com/savaki/ecs-deployer/internal/errors"
)

// CloudFormationAPI is the subset of the CloudFormation client used by StackService.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
}

// StackService creates, updates, and inspects CloudFormation stacks.
type StackService struct {
	client       CloudFormationAPI
	pollInterval time.Duration
}

// NewStackService creates a StackService from an AWS config.
func NewStackService(cfg aws.Config) *StackService {
	return &StackService{
		client:       cloudformation.NewFromConfig(cfg),
		pollInterval: 10 * time.Second,
	}
}

// NewStackServiceWithClient creates a StackService with an explicit API
// implementation. This is useful for testing.
func NewStackServiceWithClient(client CloudFormationAPI, pollInterval time.Duration) *StackService {
	return &StackService{
		client:       client,
		pollInterval: pollInterval,
	}
}

// DeployResult describes the outcome of a stack deploy.
type DeployResult struct {
	StackName string `json:"stack_name"`
	StackID   string `json:"stack_id"`
	Operation string `json:"operation"`
}

// Deploy creates the stack when it does not exist, otherwise updates it.
func (s *StackService) Deploy(ctx context.Context, stackName, template string, parameters []types.Parameter) (*DeployResult, error) {
	logger := zerolog.Ctx(ctx)

	exists, err := s.StackExists(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if stack exists: %w", err)
	}

	var result *DeployResult
	if exists {
		result, err = s.updateStack(ctx, stackName, template, parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to update stack: %w", err)
		}
		result.Operation = "UPDATE"
	} else {
		result, err = s.createStack(ctx, stackName, template, parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to create stack: %w", err)
		}
		result.Operation = "CREATE"
	}

	logger.Info().
		Str("operation", result.Operation).
		Str("stack_name", stackName).
		Msg("stack deployment submitted")
	return result, nil
}

// StackExists probes for the stack by name. A ValidationError naming a
// nonexistent stack means absent; other errors propagate.
func (s *StackService) StackExists(ctx context.Context, stackName string) (bool, error) {
	_, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "ValidationError" || strings.Contains(apiErr.ErrorMessage(), "does not exist") {
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

func (s *StackService) createStack(ctx context.Context, stackName, template string, parameters []types.Parameter) (*DeployResult, error) {
	result, err := s.client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(template),
		Parameters:   parameters,
		Capabilities: []types.Capability{
			types.CapabilityCapabilityIam,
			types.CapabilityCapabilityNamedIam,
		},
		Tags: []types.Tag{
			{
				Key:   aws.String("ManagedBy"),
				Value: aws.String("ecs-deployer"),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &DeployResult{
		StackName: stackName,
		StackID:   aws.ToString(result.StackId),
	}, nil
}

func (s *StackService) updateStack(ctx context.Context, stackName, template string, parameters []types.Parameter) (*DeployResult, error) {
	logger := zerolog.Ctx(ctx)

	result, err := s.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(template),
		Parameters:   parameters,
		Capabilities: []types.Capability{
			types.CapabilityCapabilityIam,
			types.CapabilityCapabilityNamedIam,
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "ValidationError" &&
				(strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed") ||
					strings.Contains(apiErr.ErrorMessage(), "No updates to be performed")) {
				logger.Info().Str("stack_name", stackName).Msg("no updates needed for stack")
				return &DeployResult{
					StackName: stackName,
					StackID:   stackName,
				}, nil
			}
		}
		return nil, err
	}

	return &DeployResult{
		StackName: stackName,
		StackID:   aws.ToString(result.StackId),
	}, nil
}

// StackStatus describes the current state of a stack.
type StackStatus struct {
	Status       string  `json:"status"`
	StatusReason *string `json:"status_reason,omitempty"`
	StackName    string  `json:"stack_name"`
	Failed       bool    `json:"failed"`
}

// Status returns the current stack status.
func (s *StackService) Status(ctx context.Context, stackName string) (*StackStatus, error) {
	result, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}

	if len(result.Stacks) == 0 {
		return nil, fmt.Errorf("%w: %s", ierrors.ErrStackNotFound, stackName)
	}

	stack := result.Stacks[0]
	return &StackStatus{
		Status:       string(stack.StackStatus),
		StatusReason: stack.StackStatusReason,
		StackName:    stackName,
		Failed:       isFailedStatus(stack.StackStatus),
	}, nil
}

// Wait polls the stack until it reaches a terminal state. Failed and
// rollback states return an error after logging the failed stack events.
func (s *StackService) Wait(ctx context.Context, stackName string) error {
	logger := zerolog.Ctx(ctx)

	for {
		status, err := s.Status(ctx, stackName)
		if err != nil {
			return err
		}

		state := types.StackStatus(status.Status)
		switch {
		case isFailedStatus(state):
			s.LogFailedEvents(ctx, stackName)
			if status.StatusReason != nil {
				return fmt.Errorf("stack %s entered state %s: %s", stackName, status.Status, *status.StatusReason)
			}
			return fmt.Errorf("stack %s entered state %s", stackName, status.Status)
		case isCompleteStatus(state):
			logger.Info().Str("stack_name", stackName).Str("status", status.Status).Msg("stack reached terminal state")
			return nil
		}

		logger.Info().Str("stack_name", stackName).Str("status", status.Status).Msg("waiting for stack")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// Outputs returns the stack outputs keyed by output name.
func (s *StackService) Outputs(ctx context.Context, stackName string) (map[string]string, error) {
	result, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}
	if len(result.Stacks) == 0 {
		return nil, fmt.Errorf("%w: %s", ierrors.ErrStackNotFound, stackName)
	}

	outputs := make(map[string]string)
	for _, output := range result.Stacks[0].Outputs {
		outputs[aws.ToString(output.OutputKey)] = aws.ToString(output.OutputValue)
	}
	return outputs, nil
}

func isFailedStatus(status types.StackStatus) bool {
	failedStatuses := []types.StackStatus{
		types.StackStatusCreateFailed,
		types.StackStatusUpdateFailed,
		types.StackStatusDeleteFailed,
		types.StackStatusRollbackFailed,
		types.StackStatusUpdateRollbackFailed,
		types.StackStatusRollbackComplete,
		types.StackStatusUpdateRollbackComplete,
	}

	for _, failedStatus := range failedStatuses {
		if status == failedStatus {
			return true
		}
	}
	return false
}

func isCompleteStatus(status types.StackStatus) bool {
	switch status {
	case types.StackStatusCreateComplete,
		types.StackStatusUpdateComplete,
		types.StackStatusImportComplete:
		return true
	}
	return false
}

// LogFailedEvents logs the most recent failed resource events for the stack.
func (s *StackService) LogFailedEvents(ctx context.Context, stackName string) {
	logger := zerolog.Ctx(ctx)

	result, err := s.client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to get stack events")
		return
	}

	count := 0
	for i := range result.StackEvents {
		if count >= 10 {
			break
		}
		event := &result.StackEvents[i]
		if event.ResourceStatus == types.ResourceStatusCreateFailed ||
			event.ResourceStatus == types.ResourceStatusUpdateFailed ||
			event.ResourceStatus == types.ResourceStatusDeleteFailed {
			if event.ResourceStatusReason != nil {
				logger.Info().
					Str("resource_id", aws.ToString(event.LogicalResourceId)).
					Str("status", string(event.ResourceStatus)).
					Str("reason", aws.ToString(event.ResourceStatusReason)).
					Msg("stack event")
			}
			count++
		}
	}
}
