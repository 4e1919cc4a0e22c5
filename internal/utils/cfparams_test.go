package utils

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

func TestMergeParameters(t *testing.T) {
	tests := []struct {
		name   string
		inputs []map[string]string
		want   []types.Parameter
	}{
		{
			name: "single map",
			inputs: []map[string]string{
				{"Env": "dev", "ImageTag": "deadbeef0123"},
			},
			want: []types.Parameter{
				{ParameterKey: aws.String("Env"), ParameterValue: aws.String("dev")},
				{ParameterKey: aws.String("ImageTag"), ParameterValue: aws.String("deadbeef0123")},
			},
		},
		{
			name: "merge two maps - override wins",
			inputs: []map[string]string{
				{"Env": "dev", "ImageTag": "deadbeef0123", "DesiredCount": "1"},
				{"Env": "prod", "DesiredCount": "4"},
			},
			want: []types.Parameter{
				{ParameterKey: aws.String("DesiredCount"), ParameterValue: aws.String("4")},
				{ParameterKey: aws.String("Env"), ParameterValue: aws.String("prod")},
				{ParameterKey: aws.String("ImageTag"), ParameterValue: aws.String("deadbeef0123")},
			},
		},
		{
			name:   "empty maps",
			inputs: []map[string]string{},
			want:   []types.Parameter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeParameters(tt.inputs...)

			if len(got) != len(tt.want) {
				t.Errorf("MergeParameters() length = %v, want %v", len(got), len(tt.want))
				return
			}

			for i := range got {
				if aws.ToString(got[i].ParameterKey) != aws.ToString(tt.want[i].ParameterKey) {
					t.Errorf("key[%d] = %v, want %v", i, aws.ToString(got[i].ParameterKey), aws.ToString(tt.want[i].ParameterKey))
				}
				if aws.ToString(got[i].ParameterValue) != aws.ToString(tt.want[i].ParameterValue) {
					t.Errorf("value[%d] = %v, want %v", i, aws.ToString(got[i].ParameterValue), aws.ToString(tt.want[i].ParameterValue))
				}
			}
		})
	}
}

func TestParseKeyValues(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "simple pairs",
			pairs: []string{"DesiredCount=2", "Env=prod"},
			want:  map[string]string{"DesiredCount": "2", "Env": "prod"},
		},
		{
			name:  "value containing equals",
			pairs: []string{"ConnString=host=db;port=5432"},
			want:  map[string]string{"ConnString": "host=db;port=5432"},
		},
		{
			name:  "empty value",
			pairs: []string{"Optional="},
			want:  map[string]string{"Optional": ""},
		},
		{
			name:    "missing equals",
			pairs:   []string{"NoSeparator"},
			wantErr: true,
		},
		{
			name:    "empty key",
			pairs:   []string{"=value"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeyValues(tt.pairs)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseKeyValues() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKeyValues() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKeyValues() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("ParseKeyValues()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
