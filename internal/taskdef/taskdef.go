// Package taskdef renders ECS task definition templates. Templates are
// ordinary task definition JSON documents with {{TOKEN}} placeholders.
package taskdef

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/savaki/ecs-deployer/internal/errors"
)

// Token names are SCREAMING_SNAKE_CASE, e.g. {{IMAGE_URI}}.
var tokenPattern = regexp.MustCompile(`\{\{([A-Z][A-Z0-9_]*)\}\}`)

// Render substitutes every {{TOKEN}} in template with its value. Every token
// in the template must have a value, and every value must be consumed at
// least once; either mismatch is an error so a typo in the template or the
// values never ships silently.
func Render(template []byte, values map[string]string) ([]byte, error) {
	used := make(map[string]bool, len(values))

	var missing []string
	rendered := tokenPattern.ReplaceAllFunc(template, func(match []byte) []byte {
		name := string(tokenPattern.FindSubmatch(match)[1])
		value, ok := values[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		used[name] = true
		return []byte(value)
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnresolvedToken, strings.Join(dedupe(missing), ", "))
	}

	var unused []string
	for name := range values {
		if !used[name] {
			unused = append(unused, name)
		}
	}
	if len(unused) > 0 {
		slices.Sort(unused)
		return nil, fmt.Errorf("%w: %s", errors.ErrUnusedToken, strings.Join(unused, ", "))
	}

	return rendered, nil
}

// Tokens returns the distinct token names present in template, in order of
// first appearance.
func Tokens(template []byte) []string {
	var names []string
	for _, match := range tokenPattern.FindAllSubmatch(template, -1) {
		names = append(names, string(match[1]))
	}
	return dedupe(names)
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
