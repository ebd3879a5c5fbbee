package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNoUploader is returned when an upload field receives a local path
	// but no uploader was configured.
	ErrNoUploader = errors.New("tui: no uploader configured")
)
