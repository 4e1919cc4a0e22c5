package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/rs/zerolog"
)

// IAMAPI is the subset of the IAM client used by IAMService.
type IAMAPI interface {
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// IAMService grants deployment-related permissions to IAM roles.
type IAMService struct {
	client IAMAPI
}

// NewIAMService creates an IAMService from an AWS config.
func NewIAMService(cfg aws.Config) *IAMService {
	return &IAMService{client: iam.NewFromConfig(cfg)}
}

// NewIAMServiceWithClient creates an IAMService with an explicit API
// implementation. This is useful for testing.
func NewIAMServiceWithClient(client IAMAPI) *IAMService {
	return &IAMService{client: client}
}

// AddECRPushPermissions attaches an inline policy to roleName allowing image
// pushes to the given repository ARNs.
func (s *IAMService) AddECRPushPermissions(ctx context.Context, roleName string, repositoryARNs []string) error {
	logger := zerolog.Ctx(ctx)

	if len(repositoryARNs) == 0 {
		return fmt.Errorf("no repository ARNs provided")
	}

	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Sid":      "ECRAuth",
				"Effect":   "Allow",
				"Action":   []string{"ecr:GetAuthorizationToken"},
				"Resource": "*",
			},
			{
				"Sid":    "ECRPush",
				"Effect": "Allow",
				"Action": []string{
					"ecr:BatchCheckLayerAvailability",
					"ecr:CompleteLayerUpload",
					"ecr:InitiateLayerUpload",
					"ecr:PutImage",
					"ecr:UploadLayerPart",
					"ecr:BatchGetImage",
					"ecr:GetDownloadUrlForLayer",
				},
				"Resource": repositoryARNs,
			},
		},
	}

	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}

	_, err = s.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String("ecs-deployer-ecr-push"),
		PolicyDocument: aws.String(string(policyJSON)),
	})
	if err != nil {
		return fmt.Errorf("failed to put role policy: %w", err)
	}

	logger.Info().
		Str("role", roleName).
		Int("repositories", len(repositoryARNs)).
		Msg("granted ECR push permissions")
	return nil
}
