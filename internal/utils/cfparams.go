package utils

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// MergeParameters merges multiple parameter maps with later maps having higher
// precedence and returns a sorted CloudFormation parameter list.
func MergeParameters(pp ...map[string]string) []types.Parameter {
	m := map[string]string{}
	for _, p := range pp {
		maps.Copy(m, p)
	}

	var results []types.Parameter
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v := m[k]
		results = append(results, types.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(v),
		})
	}

	return results
}

// ParseKeyValues parses repeated Key=Value flag values into a map. The value
// may itself contain '='.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected Key=Value)", pair)
		}
		m[key] = value
	}
	return m, nil
}
