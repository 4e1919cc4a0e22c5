package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	content, ok := f.objects[key]
	if !ok {
		return nil, &smithyNotFound{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(content))}, nil
}

type smithyNotFound struct{}

func (s *smithyNotFound) Error() string { return "NoSuchKey" }

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{
			name:       "bucket and key",
			uri:        "s3://artifacts/web/cloudformation.template",
			wantBucket: "artifacts",
			wantKey:    "web/cloudformation.template",
		},
		{name: "missing key", uri: "s3://artifacts", wantErr: true},
		{name: "missing bucket", uri: "s3:///key", wantErr: true},
		{name: "not s3", uri: "http://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestLoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudformation.template")
	require.NoError(t, os.WriteFile(path, []byte(`{"Resources": {}}`), 0o644))

	source := NewTemplateSourceWithClient(&fakeS3{})
	body, err := source.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, `{"Resources": {}}`, body)
}

func TestLoadS3URI(t *testing.T) {
	source := NewTemplateSourceWithClient(&fakeS3{
		objects: map[string]string{
			"artifacts/web/cloudformation.template": `{"Resources": {"Cluster": {}}}`,
		},
	})

	body, err := source.Load(context.Background(), "s3://artifacts/web/cloudformation.template")
	require.NoError(t, err)
	assert.Equal(t, `{"Resources": {"Cluster": {}}}`, body)
}

func TestLoadMissingObject(t *testing.T) {
	source := NewTemplateSourceWithClient(&fakeS3{})
	_, err := source.Load(context.Background(), "s3://artifacts/missing")
	assert.Error(t, err)
}
