package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
)

// ECRAPI is the subset of the ECR client used by ECRService.
type ECRAPI interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
	SetRepositoryPolicy(ctx context.Context, params *ecr.SetRepositoryPolicyInput, optFns ...func(*ecr.Options)) (*ecr.SetRepositoryPolicyOutput, error)
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

// STSAPI is the subset of the STS client used by ECRService.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// OrganizationsAPI is the subset of the Organizations client used by ECRService.
type OrganizationsAPI interface {
	DescribeOrganization(ctx context.Context, params *organizations.DescribeOrganizationInput, optFns ...func(*organizations.Options)) (*organizations.DescribeOrganizationOutput, error)
}

// ECRService provisions and authenticates against ECR repositories.
type ECRService struct {
	client    ECRAPI
	stsClient STSAPI
	orgClient OrganizationsAPI
}

// NewECRService creates an ECRService from an AWS config.
func NewECRService(cfg aws.Config) *ECRService {
	return &ECRService{
		client:    ecr.NewFromConfig(cfg),
		stsClient: sts.NewFromConfig(cfg),
		orgClient: organizations.NewFromConfig(cfg),
	}
}

// NewECRServiceWithClients creates an ECRService with explicit API
// implementations. This is useful for testing.
func NewECRServiceWithClients(client ECRAPI, stsClient STSAPI, orgClient OrganizationsAPI) *ECRService {
	return &ECRService{
		client:    client,
		stsClient: stsClient,
		orgClient: orgClient,
	}
}

// RepositoryInfo describes an ECR repository.
type RepositoryInfo struct {
	Name string
	ARN  string
	URI  string
}

// EnsureRepository returns the repository, creating it only when it does not
// already exist. A repeat call against an existing repository issues no
// create.
func (s *ECRService) EnsureRepository(ctx context.Context, repositoryName string) (*RepositoryInfo, error) {
	logger := zerolog.Ctx(ctx)

	describeOutput, err := s.client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{repositoryName},
	})
	if err == nil {
		if len(describeOutput.Repositories) == 0 {
			return nil, fmt.Errorf("repository %q not found in describe output", repositoryName)
		}
		repo := describeOutput.Repositories[0]
		logger.Info().Str("repository", repositoryName).Msg("repository already exists")
		return &RepositoryInfo{
			Name: aws.ToString(repo.RepositoryName),
			ARN:  aws.ToString(repo.RepositoryArn),
			URI:  aws.ToString(repo.RepositoryUri),
		}, nil
	}

	var notFound *types.RepositoryNotFoundException
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to describe repository %q: %w", repositoryName, err)
	}

	logger.Info().Str("repository", repositoryName).Msg("creating repository")

	output, err := s.client.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName:     aws.String(repositoryName),
		ImageTagMutability: types.ImageTagMutabilityImmutable,
		ImageScanningConfiguration: &types.ImageScanningConfiguration{
			ScanOnPush: true,
		},
		Tags: []types.Tag{
			{
				Key:   aws.String("ManagedBy"),
				Value: aws.String("ecs-deployer"),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create repository %q: %w", repositoryName, err)
	}

	return &RepositoryInfo{
		Name: aws.ToString(output.Repository.RepositoryName),
		ARN:  aws.ToString(output.Repository.RepositoryArn),
		URI:  aws.ToString(output.Repository.RepositoryUri),
	}, nil
}

// ImageExists reports whether the repository already holds an image with the
// given tag. Tags are immutable, so a present tag means an earlier run
// already pushed this revision.
func (s *ECRService) ImageExists(ctx context.Context, repositoryName, tag string) (bool, error) {
	_, err := s.client.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RepositoryName: aws.String(repositoryName),
		ImageIds: []types.ImageIdentifier{
			{ImageTag: aws.String(tag)},
		},
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.ImageNotFoundException
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to describe image %s:%s: %w", repositoryName, tag, err)
}

// RegistryAuth holds docker login credentials for a registry endpoint.
type RegistryAuth struct {
	Registry string
	Username string
	Password string
}

// GetRegistryAuth exchanges an ECR authorization token for docker login
// credentials.
func (s *ECRService) GetRegistryAuth(ctx context.Context) (*RegistryAuth, error) {
	output, err := s.client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization token: %w", err)
	}
	if len(output.AuthorizationData) == 0 {
		return nil, fmt.Errorf("no authorization data returned")
	}

	data := output.AuthorizationData[0]
	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return nil, fmt.Errorf("failed to decode authorization token: %w", err)
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return nil, fmt.Errorf("malformed authorization token")
	}

	return &RegistryAuth{
		Registry: strings.TrimPrefix(aws.ToString(data.ProxyEndpoint), "https://"),
		Username: username,
		Password: password,
	}, nil
}

// GetOrganizationID retrieves the AWS Organization ID if the account belongs to one
func (s *ECRService) GetOrganizationID(ctx context.Context) (string, error) {
	output, err := s.orgClient.DescribeOrganization(ctx, &organizations.DescribeOrganizationInput{})
	if err != nil {
		// Not in an organization or no permissions
		if strings.Contains(err.Error(), "AWSOrganizationsNotInUseException") ||
			strings.Contains(err.Error(), "AccessDeniedException") {
			return "", nil
		}
		return "", fmt.Errorf("failed to describe organization: %w", err)
	}

	return aws.ToString(output.Organization.Id), nil
}

// SetRepositoryPolicy sets an organization-wide read policy on the repository
func (s *ECRService) SetRepositoryPolicy(ctx context.Context, repositoryName, organizationID string) error {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Sid":    "OrganizationAccess",
				"Effect": "Allow",
				"Principal": map[string]interface{}{
					"AWS": "*",
				},
				"Action": []string{
					"ecr:GetDownloadUrlForLayer",
					"ecr:BatchGetImage",
					"ecr:BatchCheckLayerAvailability",
					"ecr:DescribeRepositories",
					"ecr:GetRepositoryPolicy",
					"ecr:ListImages",
				},
				"Condition": map[string]interface{}{
					"StringEquals": map[string]interface{}{
						"aws:PrincipalOrgID": organizationID,
					},
				},
			},
		},
	}

	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}

	_, err = s.client.SetRepositoryPolicy(ctx, &ecr.SetRepositoryPolicyInput{
		RepositoryName: aws.String(repositoryName),
		PolicyText:     aws.String(string(policyJSON)),
	})
	if err != nil {
		return fmt.Errorf("failed to set repository policy: %w", err)
	}

	return nil
}

// GetAccountID retrieves the AWS account ID
func (s *ECRService) GetAccountID(ctx context.Context) (string, error) {
	output, err := s.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return aws.ToString(output.Account), nil
}
