package hugo

import "errors"

var (
	// ErrBuilderNotFound indicates the builder executable was not detected on PATH.
	ErrBuilderNotFound = errors.New("site builder executable not found")
	// ErrBuildFailed indicates the builder returned a non-zero exit status.
	ErrBuildFailed = errors.New("site build failed")
	// ErrConfigMarshalFailed indicates marshaling the generated configuration failed.
	ErrConfigMarshalFailed = errors.New("site config marshal failed")
	// ErrConfigWriteFailed indicates writing hugo.yaml failed.
	ErrConfigWriteFailed = errors.New("site config write failed")
	// ErrEmptyPayload marks records whose body is empty.
	ErrEmptyPayload = errors.New("content payload is empty")
)
