package docker

import (
	"reflect"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name       string
		ref        string
		dockerfile string
		context    string
		labels     map[string]string
		buildArgs  map[string]string
		want       []string
	}{
		{
			name:       "minimal",
			ref:        "repo/web:deadbeef",
			dockerfile: "Dockerfile",
			context:    ".",
			want:       []string{"build", "--progress=plain", "-t", "repo/web:deadbeef", "-f", "Dockerfile", "."},
		},
		{
			name:       "labels and build args sorted",
			ref:        "repo/web:deadbeef",
			dockerfile: "Dockerfile",
			context:    ".",
			labels: map[string]string{
				"org.opencontainers.image.revision": "deadbeef",
			},
			buildArgs: map[string]string{
				"B_ARG": "2",
				"A_ARG": "1",
			},
			want: []string{
				"build", "--progress=plain", "-t", "repo/web:deadbeef", "-f", "Dockerfile",
				"--label", "org.opencontainers.image.revision=deadbeef",
				"--build-arg", "A_ARG=1",
				"--build-arg", "B_ARG=2",
				".",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildArgs(tt.ref, tt.dockerfile, tt.context, tt.labels, tt.buildArgs)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{name: "valid", ref: "123456789012.dkr.ecr.us-east-1.amazonaws.com/web/dev:deadbeef0123"},
		{name: "empty", ref: "", wantErr: true},
		{name: "uppercase", ref: "Repo:Tag", wantErr: true},
		{name: "spaces", ref: "repo :tag", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRef(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
		})
	}
}
