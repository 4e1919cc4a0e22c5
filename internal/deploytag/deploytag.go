// Package deploytag manages the locally persisted deployment tag, a short
// random identifier that keys the deployment stack. The tag is generated once
// and cached in a single-line file so repeated runs target the same stack.
package deploytag

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/segmentio/ksuid"
)

const DefaultFile = ".deploy-tag"

// tagLength is the number of characters taken from the random payload end of
// a KSUID.
const tagLength = 8

var validTag = regexp.MustCompile(`^[a-z0-9]+$`)

// LoadOrCreate returns the deployment tag from path, generating and
// persisting a new one when the file is absent or holds an invalid tag.
func LoadOrCreate(path string) (string, error) {
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err == nil {
		tag := strings.TrimSpace(string(data))
		if validTag.MatchString(tag) {
			return tag, nil
		}
		// Corrupt or empty file, fall through and regenerate.
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read deploy tag file %s: %w", path, err)
	}

	tag := New()
	if err := os.WriteFile(path, []byte(tag+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write deploy tag file %s: %w", path, err)
	}

	return tag, nil
}

// Load returns the deployment tag from path without generating one. Returns
// an error when the file is absent or holds an invalid tag.
func Load(path string) (string, error) {
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read deploy tag file %s: %w", path, err)
	}

	tag := strings.TrimSpace(string(data))
	if !validTag.MatchString(tag) {
		return "", fmt.Errorf("deploy tag file %s holds an invalid tag %q", path, tag)
	}
	return tag, nil
}

// New generates a fresh deployment tag. The trailing characters of a KSUID
// are the random payload; lowercasing keeps the tag legal inside ECR
// repository and CloudFormation stack names.
func New() string {
	s := ksuid.New().String()
	return strings.ToLower(s[len(s)-tagLength:])
}
