package services

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeECS struct {
	registered *ecs.RegisterTaskDefinitionInput
	updated    *ecs.UpdateServiceInput
}

func (f *fakeECS) RegisterTaskDefinition(_ context.Context, params *ecs.RegisterTaskDefinitionInput, _ ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error) {
	f.registered = params
	return &ecs.RegisterTaskDefinitionOutput{
		TaskDefinition: &types.TaskDefinition{
			TaskDefinitionArn: aws.String("arn:aws:ecs:us-east-1:123456789012:task-definition/" + aws.ToString(params.Family) + ":7"),
		},
	}, nil
}

func (f *fakeECS) UpdateService(_ context.Context, params *ecs.UpdateServiceInput, _ ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	f.updated = params
	return &ecs.UpdateServiceOutput{}, nil
}

func (f *fakeECS) DescribeServices(_ context.Context, params *ecs.DescribeServicesInput, _ ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	return &ecs.DescribeServicesOutput{
		Services: []types.Service{
			{
				ServiceName:    aws.String(params.Services[0]),
				TaskDefinition: aws.String("arn:aws:ecs:us-east-1:123456789012:task-definition/web:6"),
			},
		},
	}, nil
}

func TestRegisterTaskDefinition(t *testing.T) {
	fake := &fakeECS{}
	service := NewECSServiceWithClient(fake)

	document := []byte(`{
  "family": "web-ab12cd34",
  "networkMode": "awsvpc",
  "requiresCompatibilities": ["FARGATE"],
  "cpu": "256",
  "memory": "512",
  "containerDefinitions": [
    {
      "name": "web",
      "image": "123456789012.dkr.ecr.us-east-1.amazonaws.com/web/dev:deadbeef0123",
      "essential": true
    }
  ]
}`)

	arn, err := service.RegisterTaskDefinition(context.Background(), document)
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:ecs:us-east-1:123456789012:task-definition/web-ab12cd34:7", arn)
	assert.Equal(t, "web-ab12cd34", aws.ToString(fake.registered.Family))
	require.Len(t, fake.registered.ContainerDefinitions, 1)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/web/dev:deadbeef0123",
		aws.ToString(fake.registered.ContainerDefinitions[0].Image))
}

func TestRegisterTaskDefinitionRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		document string
	}{
		{name: "not json", document: `{{`},
		{name: "missing family", document: `{"containerDefinitions": [{"name": "web"}]}`},
		{name: "no containers", document: `{"family": "web"}`},
	}

	service := NewECSServiceWithClient(&fakeECS{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.RegisterTaskDefinition(context.Background(), []byte(tt.document))
			assert.Error(t, err)
		})
	}
}

func TestUpdateService(t *testing.T) {
	fake := &fakeECS{}
	service := NewECSServiceWithClient(fake)

	err := service.UpdateService(context.Background(), "web-cluster", "web-service", "arn:task-def:7")
	require.NoError(t, err)

	assert.Equal(t, "web-cluster", aws.ToString(fake.updated.Cluster))
	assert.Equal(t, "web-service", aws.ToString(fake.updated.Service))
	assert.Equal(t, "arn:task-def:7", aws.ToString(fake.updated.TaskDefinition))
	assert.True(t, fake.updated.ForceNewDeployment)
}
