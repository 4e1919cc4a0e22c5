// Package historydao stores deployment history records in DynamoDB.
package historydao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/gox/slicex"
)

const latest = "latest"

// PK represents a DynamoDB partition key in format {app}/{env}
// Example: web/dev
type PK string

// NewPK creates a new partition key from app and env
func NewPK(app, env string) PK {
	return PK(fmt.Sprintf("%s/%s", app, env))
}

// ParsePK parses a partition key into its app and env components
func ParsePK(pk PK) (app, env string, err error) {
	s := string(pk)
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {app}/{env}", s)
	}
	return parts[0], parts[1], nil
}

// String returns the string representation of the partition key
func (pk PK) String() string {
	return string(pk)
}

// ID represents a deployment ID in format {app}/{env}:{ksuid}
type ID string

func (id ID) String() string {
	return string(id)
}

// ParseID parses a deployment ID into its partition key (pk) and sort key (sk) components
func ParseID(id ID) (pk PK, sk string, err error) {
	s := string(id)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid deployment ID format: %s, expected {app}/{env}:{ksuid}", s)
	}
	return PK(parts[0]), parts[1], nil
}

// NewID constructs an ID from partition key and sort key
func NewID(pk PK, sk string) ID {
	return ID(fmt.Sprintf("%s:%s", pk, sk))
}

// Status represents the current status of a deployment
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Record represents a deployment record in DynamoDB
type Record struct {
	PK         PK     `ddb:"hash" dynamodbav:"pk"`  // {app}/{env} - DynamoDB partition key
	SK         string `ddb:"range" dynamodbav:"sk"` // KSUID - DynamoDB sort key
	ID         ID     `dynamodbav:"id,omitempty"`   // ID is only used for latest entries
	App        string `dynamodbav:"app,omitempty"`
	Env        string `dynamodbav:"env,omitempty"`
	DeployTag  string `dynamodbav:"deploy_tag,omitempty"`
	Version    string `dynamodbav:"version,omitempty"` // image tag
	CommitHash string `dynamodbav:"commit_hash,omitempty"`
	ImageURI   string `dynamodbav:"image_uri,omitempty"`
	StackName  string `dynamodbav:"stack_name,omitempty"`
	Status     Status `dynamodbav:"status,omitempty"`
	ErrorMsg   *string `dynamodbav:"error_msg,omitempty,omitempty"`
	CreatedAt  int64   `dynamodbav:"created_at,omitempty"`            // Unix epoch timestamp of creation
	FinishedAt *int64  `dynamodbav:"finished_at,omitempty,omitempty"` // Unix epoch timestamp of completion
	UpdatedAt  int64   `dynamodbav:"updated_at,omitempty"`            // Unix epoch timestamp of last update
}

// GetID returns the full deployment ID in format: {app}/{env}:{ksuid}
func (r *Record) GetID() ID {
	if r.ID != "" {
		return r.ID
	}
	return NewID(r.PK, r.SK)
}

// TableName derives the history table name from the environment
func TableName(env string) string {
	return fmt.Sprintf("%s-ecs-deployer-history", env)
}

// ResolveTableName returns the configured table name, falling back to the
// conventional per-environment name. Every command resolves the table through
// this so readers and writers always agree.
func ResolveTableName(configured, env string) string {
	if configured != "" {
		return configured
	}
	return TableName(env)
}

// CreateInput contains the fields needed to create a new deployment record
type CreateInput struct {
	App        string
	Env        string
	SK         string // KSUID sort key
	DeployTag  string
	Version    string // image tag
	CommitHash string
	ImageURI   string
	StackName  string
}

// UpdateInput contains the fields that can be updated on a deployment record
type UpdateInput struct {
	PK       PK
	SK       string
	Status   *Status
	ImageURI string
	ErrorMsg *string
}

// DAO provides data access operations for deployment records
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Create creates a new deployment record with initial status PENDING
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	pk := NewPK(input.App, input.Env)
	now := time.Now().Unix()

	record := Record{
		PK:         pk,
		SK:         input.SK,
		App:        input.App,
		Env:        input.Env,
		DeployTag:  input.DeployTag,
		Version:    input.Version,
		CommitHash: input.CommitHash,
		ImageURI:   input.ImageURI,
		StackName:  input.StackName,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := d.table.Put(&record).RunWithContext(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create deployment record: %w", err)
	}

	return record, nil
}

// Find retrieves a deployment record by ID
func (d *DAO) Find(ctx context.Context, id ID) (Record, error) {
	pk, sk, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}

	var record Record

	err = d.table.Get(pk.String()).
		Range(sk).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, fmt.Errorf("deployment record not found: %s", id)
		}
		return Record{}, fmt.Errorf("failed to find deployment record: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("deployment record not found: %s", id)
	}

	return record, nil
}

// UpdateStatus updates the status of a deployment record and maintains a
// "latest" magic record with pk=latest/{env} and sk={app}/{env} so the most
// recent deployment per app is a single query away
func (d *DAO) UpdateStatus(ctx context.Context, input UpdateInput) error {
	if input.Status == nil {
		return fmt.Errorf("status is required")
	}

	now := time.Now().Unix()

	update := d.table.Update(input.PK).
		Range(input.SK).
		Set("#Status = ?", string(*input.Status)).
		Set("#UpdatedAt = ?", now)

	// Terminal states record completion time
	if *input.Status == StatusSuccess || *input.Status == StatusFailed {
		update = update.Set("#FinishedAt = ?", now)
	}

	if input.ImageURI != "" {
		update = update.Set("#ImageURI = ?", input.ImageURI)
	}

	if input.ErrorMsg != nil {
		update = update.Set("#ErrorMsg = ?", *input.ErrorMsg)
	}

	app, env, err := ParsePK(input.PK)
	if err != nil {
		return fmt.Errorf("failed to parse PK: %w", err)
	}

	latestRecord := &Record{
		PK:        NewPK(latest, env),
		SK:        input.PK.String(),
		ID:        NewID(input.PK, input.SK),
		App:       app,
		Env:       env,
		Status:    *input.Status,
		ImageURI:  input.ImageURI,
		UpdatedAt: now,
	}

	put := d.table.Put(latestRecord)

	if _, err := d.db.TransactWriteItemsWithContext(ctx, update, put); err != nil {
		return err
	}

	return nil
}

// Query returns all deployments for a given app/env partition key
func (d *DAO) Query(ctx context.Context, pk PK) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", pk.String()).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}

	return records, nil
}

// QueryByAppEnv returns all deployments for a given app and environment
func (d *DAO) QueryByAppEnv(ctx context.Context, app, env string) ([]Record, error) {
	pk := NewPK(app, env)
	return d.Query(ctx, pk)
}

// QueryLatest returns the latest deployment for each app in the given
// environment via the "latest" magic records
func (d *DAO) QueryLatest(ctx context.Context, env string) ([]Record, error) {
	pk := NewPK(latest, env)
	var records []Record

	err := d.table.Query("#PK = ?", pk).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest deployments: %w", err)
	}

	// Most recent first
	for i := 0; i < len(records)-1; i++ {
		for j := i + 1; j < len(records); j++ {
			if records[j].UpdatedAt > records[i].UpdatedAt {
				records[i], records[j] = records[j], records[i]
			}
		}
	}

	ids := slicex.Map(records, GetID)

	deployments := make([]Record, 0, len(ids))
	for _, id := range ids {
		record, err := d.Find(ctx, id)
		if err != nil {
			// Skip records that are not found (may have been deleted)
			continue
		}
		deployments = append(deployments, record)
	}

	return deployments, nil
}

// GetID is a standalone accessor for use with slicex.Map
func GetID(r Record) ID {
	return r.GetID()
}
