package di

import (
	"context"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/savaki/ecs-deployer/internal/config"
	"github.com/savaki/ecs-deployer/internal/dao/historydao"
	"github.com/savaki/ecs-deployer/internal/docker"
	"github.com/savaki/ecs-deployer/internal/execx"
	"github.com/savaki/ecs-deployer/internal/gitrev"
	"github.com/savaki/ecs-deployer/internal/pipeline"
	"github.com/savaki/ecs-deployer/internal/services"
)

func ProvideAWSConfig(cfg *config.Config) (awsv2.Config, error) {
	return awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
}

func ProvideRunner(dryRun DryRun) execx.Runner {
	return execx.Runner{DryRun: bool(dryRun)}
}

// ProvideRevisionSource always uses a live runner; revision lookup is
// read-only and must produce a real tag even in dry-run mode.
func ProvideRevisionSource() *gitrev.Source {
	return gitrev.New(execx.Runner{})
}

func ProvideDynamoDB(awsCfg awsv2.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg)
}

func ProvideHistoryDAO(cfg *config.Config, client *dynamodb.Client) *historydao.DAO {
	return historydao.New(client, historydao.ResolveTableName(cfg.HistoryTable, cfg.Env))
}

func ProvidePipeline(
	cfg *config.Config,
	registry *services.ECRService,
	publisher *docker.Client,
	stacks *services.StackService,
	templates *services.TemplateSource,
	service *services.ECSService,
	recorder *services.ParameterService,
) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Config:    cfg,
		Registry:  registry,
		Publisher: publisher,
		Stacks:    stacks,
		Templates: templates,
		Service:   service,
		Recorder:  recorder,
	}
}
