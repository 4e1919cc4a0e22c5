package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	ierrors "github.com/savaki/ecs-deployer/internal/errors"
)

// S3API is the subset of the S3 client used by TemplateSource.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// TemplateSource loads template bodies from local files or s3:// URIs.
type TemplateSource struct {
	client S3API
}

// NewTemplateSource creates a TemplateSource from an AWS config.
func NewTemplateSource(cfg aws.Config) *TemplateSource {
	return &TemplateSource{client: s3.NewFromConfig(cfg)}
}

// NewTemplateSourceWithClient creates a TemplateSource with an explicit API
// implementation. This is useful for testing.
func NewTemplateSourceWithClient(client S3API) *TemplateSource {
	return &TemplateSource{client: client}
}

// Load returns the template body at location, which is either a local path
// or an s3://bucket/key URI.
func (t *TemplateSource) Load(ctx context.Context, location string) (string, error) {
	if strings.HasPrefix(location, "s3://") {
		bucket, key, err := ParseS3URI(location)
		if err != nil {
			return "", err
		}
		return t.download(ctx, bucket, key)
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", location, err)
	}
	return string(data), nil
}

// ParseS3URI splits s3://bucket/key into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ierrors.ErrInvalidS3URI, uri)
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s", ierrors.ErrInvalidS3URI, uri)
	}
	return bucket, key, nil
}

func (t *TemplateSource) download(ctx context.Context, bucket, key string) (s string, err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Info().
			Int("length", len(s)).
			Interface("error", err).
			Str("bucket", bucket).
			Str("key", key).
			Dur("duration", time.Since(begin)).
			Msg("Downloaded S3 object")
	}(time.Now())

	result, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object %s from bucket %s: %w", key, bucket, err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read object content: %w", err)
	}

	return string(content), nil
}
