package errors

import "errors"

var (
	ErrAppNameRequired    = errors.New("app name is required")
	ErrStackNotFound      = errors.New("stack not found")
	ErrMissingStackOutput = errors.New("required stack output missing")
	ErrUnresolvedToken    = errors.New("unresolved template token")
	ErrUnusedToken        = errors.New("template value never used")
	ErrNotARepository     = errors.New("not a git repository")
	ErrInvalidS3URI       = errors.New("invalid S3 URI")
)
