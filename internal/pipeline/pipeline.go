// Package pipeline runs the deployment workflow: ensure the registry, build
// and push the image, deploy the stack, register the task definition, and
// update the service. Steps run strictly in order and the first error aborts
// the run; re-running is the recovery mechanism.
package pipeline

import (
	"context"
	"fmt"
	"maps"
	"time"

	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/rs/zerolog"

	"github.com/savaki/ecs-deployer/internal/config"
	"github.com/savaki/ecs-deployer/internal/docker"
	ierrors "github.com/savaki/ecs-deployer/internal/errors"
	"github.com/savaki/ecs-deployer/internal/services"
	"github.com/savaki/ecs-deployer/internal/taskdef"
	"github.com/savaki/ecs-deployer/internal/utils"
)

// Stack output keys the template must export. Cluster and service identity
// flows from these outputs; the pipeline never lists resources and matches
// names.
const (
	OutputClusterName = "ClusterName"
	OutputServiceName = "ServiceName"
)

// Registry provisions the image repository and issues docker credentials.
type Registry interface {
	EnsureRepository(ctx context.Context, name string) (*services.RepositoryInfo, error)
	ImageExists(ctx context.Context, repositoryName, tag string) (bool, error)
	GetRegistryAuth(ctx context.Context) (*services.RegistryAuth, error)
}

// Publisher builds and pushes container images.
type Publisher interface {
	Login(ctx context.Context, registry, username, password string) error
	Build(ctx context.Context, opts docker.BuildOptions) error
	Push(ctx context.Context, ref string) error
	Logout(ctx context.Context, registry string)
}

// Stacks provisions the CloudFormation stack.
type Stacks interface {
	Deploy(ctx context.Context, stackName, template string, parameters []cftypes.Parameter) (*services.DeployResult, error)
	Wait(ctx context.Context, stackName string) error
	Outputs(ctx context.Context, stackName string) (map[string]string, error)
}

// Templates loads template bodies from local paths or s3:// URIs.
type Templates interface {
	Load(ctx context.Context, location string) (string, error)
}

// Service registers task definitions and repoints the ECS service.
type Service interface {
	RegisterTaskDefinition(ctx context.Context, document []byte) (string, error)
	UpdateService(ctx context.Context, cluster, service, taskDefinitionARN string) error
}

// Recorder persists the deployed version after a successful run. Optional;
// failures are logged, never fatal.
type Recorder interface {
	RecordDeployedVersion(ctx context.Context, env, app, version string) error
}

// Input carries the identifiers resolved before the pipeline runs.
type Input struct {
	DeployTag  string
	ImageTag   string
	CommitHash string
}

// Result carries the identifiers produced by a successful run.
type Result struct {
	RepositoryURI     string                 `json:"repository_uri"`
	ImageURI          string                 `json:"image_uri"`
	Stack             *services.DeployResult `json:"stack"`
	Cluster           string                 `json:"cluster"`
	Service           string                 `json:"service"`
	TaskDefinitionARN string                 `json:"task_definition_arn"`
}

// Pipeline wires the deployment steps together.
type Pipeline struct {
	Config    *config.Config
	Registry  Registry
	Publisher Publisher
	Stacks    Stacks
	Templates Templates
	Service   Service
	Recorder  Recorder
}

// Run executes the deployment end to end.
func (p *Pipeline) Run(ctx context.Context, input Input) (result *Result, err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Info().
			Interface("error", err).
			Str("deploy_tag", input.DeployTag).
			Str("image_tag", input.ImageTag).
			Dur("duration", time.Since(begin)).
			Msg("deploy pipeline completed")
	}(time.Now())

	cfg := p.Config

	// Step 1: ensure the repository exists
	repo, err := p.Registry.EnsureRepository(ctx, cfg.RepositoryName())
	if err != nil {
		return nil, fmt.Errorf("registry provisioning failed: %w", err)
	}

	// Step 2: build and push the image
	imageURI, err := p.publishImage(ctx, repo, input)
	if err != nil {
		return nil, err
	}

	// Step 3: create or update the stack
	stackName := cfg.StackName(input.DeployTag)
	deployResult, err := p.deployStack(ctx, stackName, input)
	if err != nil {
		return nil, err
	}

	// Step 4: resolve cluster/service from the stack outputs
	outputs, err := p.Stacks.Outputs(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("failed to read stack outputs: %w", err)
	}
	cluster, service, err := serviceIdentity(outputs)
	if err != nil {
		return nil, fmt.Errorf("stack %s: %w", stackName, err)
	}

	// Step 5: register the task definition
	taskDefARN, err := p.registerTaskDefinition(ctx, input, imageURI)
	if err != nil {
		return nil, err
	}

	// Step 6: point the service at the new revision
	if err := p.Service.UpdateService(ctx, cluster, service, taskDefARN); err != nil {
		return nil, err
	}

	// Step 7: record the deployed version (best-effort)
	if p.Recorder != nil {
		if err := p.Recorder.RecordDeployedVersion(ctx, cfg.Env, cfg.App, input.ImageTag); err != nil {
			logger.Warn().Err(err).Msg("failed to record deployed version")
		}
	}

	return &Result{
		RepositoryURI:     repo.URI,
		ImageURI:          imageURI,
		Stack:             deployResult,
		Cluster:           cluster,
		Service:           service,
		TaskDefinitionARN: taskDefARN,
	}, nil
}

func (p *Pipeline) publishImage(ctx context.Context, repo *services.RepositoryInfo, input Input) (string, error) {
	imageURI := fmt.Sprintf("%s:%s", repo.URI, input.ImageTag)

	// Tags are immutable, so a present tag is a completed push from an
	// earlier run; rebuilding would produce a digest ECR rejects.
	exists, err := p.Registry.ImageExists(ctx, repo.Name, input.ImageTag)
	if err != nil {
		return "", fmt.Errorf("failed to check for existing image: %w", err)
	}
	if exists {
		zerolog.Ctx(ctx).Info().
			Str("image_uri", imageURI).
			Msg("image already pushed, skipping build")
		return imageURI, nil
	}

	auth, err := p.Registry.GetRegistryAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("registry auth failed: %w", err)
	}

	if err := p.Publisher.Login(ctx, auth.Registry, auth.Username, auth.Password); err != nil {
		return "", fmt.Errorf("registry login failed: %w", err)
	}
	defer p.Publisher.Logout(ctx, auth.Registry)

	err = p.Publisher.Build(ctx, docker.BuildOptions{
		Ref:        imageURI,
		Dockerfile: p.Config.Dockerfile,
		Context:    p.Config.BuildContext,
		Labels: map[string]string{
			"org.opencontainers.image.revision": input.CommitHash,
		},
	})
	if err != nil {
		return "", fmt.Errorf("image build failed: %w", err)
	}

	if err := p.Publisher.Push(ctx, imageURI); err != nil {
		return "", fmt.Errorf("image push failed: %w", err)
	}

	return imageURI, nil
}

func (p *Pipeline) deployStack(ctx context.Context, stackName string, input Input) (*services.DeployResult, error) {
	template, err := p.Templates.Load(ctx, p.Config.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to load stack template: %w", err)
	}

	parameters := utils.MergeParameters(
		map[string]string{
			"App":       p.Config.App,
			"Env":       p.Config.Env,
			"DeployTag": input.DeployTag,
		},
		p.Config.Parameters,
	)

	result, err := p.Stacks.Deploy(ctx, stackName, template, parameters)
	if err != nil {
		return nil, fmt.Errorf("stack deploy failed: %w", err)
	}

	if err := p.Stacks.Wait(ctx, stackName); err != nil {
		return nil, fmt.Errorf("stack did not stabilize: %w", err)
	}

	return result, nil
}

func (p *Pipeline) registerTaskDefinition(ctx context.Context, input Input, imageURI string) (string, error) {
	document, err := p.Templates.Load(ctx, p.Config.TaskTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to load task definition template: %w", err)
	}

	values := templateValues([]byte(document), map[string]string{
		"APP":        p.Config.App,
		"ENV":        p.Config.Env,
		"DEPLOY_TAG": input.DeployTag,
		"IMAGE_URI":  imageURI,
	}, p.Config.TokenValues)

	rendered, err := taskdef.Render([]byte(document), values)
	if err != nil {
		return "", fmt.Errorf("failed to render task definition: %w", err)
	}

	arn, err := p.Service.RegisterTaskDefinition(ctx, rendered)
	if err != nil {
		return "", err
	}
	return arn, nil
}

// serviceIdentity extracts the cluster and service names from stack outputs.
func serviceIdentity(outputs map[string]string) (cluster, service string, err error) {
	cluster = outputs[OutputClusterName]
	service = outputs[OutputServiceName]
	if cluster == "" {
		return "", "", fmt.Errorf("%w: %s", ierrors.ErrMissingStackOutput, OutputClusterName)
	}
	if service == "" {
		return "", "", fmt.Errorf("%w: %s", ierrors.ErrMissingStackOutput, OutputServiceName)
	}
	return cluster, service, nil
}

// templateValues merges builtin values with user-provided token values.
// Builtins the template never references are dropped so templates opt into
// only the tokens they use; user values always pass through so a typo in the
// config surfaces as an unused-token error at render time.
func templateValues(document []byte, builtin, user map[string]string) map[string]string {
	present := make(map[string]bool)
	for _, name := range taskdef.Tokens(document) {
		present[name] = true
	}

	values := make(map[string]string, len(builtin)+len(user))
	for name, value := range builtin {
		if present[name] {
			values[name] = value
		}
	}
	maps.Copy(values, user)
	return values
}
