// Package config loads the project deployment configuration.
package config

import (
	"fmt"
	"os"

	"github.com/savaki/ecs-deployer/internal/errors"
	"gopkg.in/yaml.v3"
)

const DefaultFile = ".ecs-deployer.yml"

// Config describes one deployable application. Values come from the project
// YAML file; CLI flags override file values.
type Config struct {
	App          string            `yaml:"app"`
	Env          string            `yaml:"env"`
	Region       string            `yaml:"region"`
	Dockerfile   string            `yaml:"dockerfile"`
	BuildContext string            `yaml:"build_context"`
	Template     string            `yaml:"template"`      // CloudFormation template: local path or s3:// URI
	TaskTemplate string            `yaml:"task_template"` // task definition JSON template path
	TagFile      string            `yaml:"tag_file"`
	Parameters   map[string]string `yaml:"parameters"` // CloudFormation parameter overrides
	TokenValues  map[string]string `yaml:"tokens"`     // extra task template token values
	HistoryTable string            `yaml:"history_table"`
	PushRole     string            `yaml:"push_role"` // IAM role granted ECR push on setup
}

// Load reads the config file at path. A missing file is not an error; flag
// and default values then stand alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.Region == "" {
		c.Region = os.Getenv("AWS_REGION")
	}
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Dockerfile == "" {
		c.Dockerfile = "Dockerfile"
	}
	if c.BuildContext == "" {
		c.BuildContext = "."
	}
	if c.Template == "" {
		c.Template = "cloudformation.template"
	}
	if c.TaskTemplate == "" {
		c.TaskTemplate = "taskdef.template.json"
	}
	if c.TagFile == "" {
		c.TagFile = ".deploy-tag"
	}
}

// Validate checks required fields after defaults and overrides are applied.
func (c *Config) Validate() error {
	if c.App == "" {
		return errors.ErrAppNameRequired
	}
	return nil
}

// StackName returns the CloudFormation stack name for the given deploy tag.
func (c *Config) StackName(deployTag string) string {
	return fmt.Sprintf("%s-%s", c.App, deployTag)
}

// RepositoryName returns the ECR repository name.
func (c *Config) RepositoryName() string {
	return fmt.Sprintf("%s/%s", c.App, c.Env)
}
