package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDecode is returned when an image file cannot be decoded
	ErrDecode = errors.New("image decode failed")

	// ErrBackendLoad is returned when a model or its vocabulary cannot be loaded
	ErrBackendLoad = errors.New("model backend load failed")

	// ErrChildProcess is returned when an annotator subprocess exits non-zero
	ErrChildProcess = errors.New("annotator process failed")

	// ErrEmptyInput is returned when no images are discovered
	ErrEmptyInput = errors.New("no images found")
)

// DecodeError reports an unreadable image. Batches skip the image and continue.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrDecode, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// BackendLoadError reports a model that could not be resolved or loaded
type BackendLoadError struct {
	Model string
	Err   error
}

func (e *BackendLoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBackendLoad, e.Model, e.Err)
}

func (e *BackendLoadError) Unwrap() []error { return []error{ErrBackendLoad, e.Err} }

// ChildProcessError carries the captured stderr of a failed pass
type ChildProcessError struct {
	Pass     string
	ExitCode int
	Stderr   string
}

func (e *ChildProcessError) Error() string {
	msg := fmt.Sprintf("%s failed with code %d", e.Pass, e.ExitCode)
	if details := strings.TrimSpace(e.Stderr); details != "" {
		msg += "\nError details: " + details
	}
	return msg
}

func (e *ChildProcessError) Unwrap() error { return ErrChildProcess }

// EmptyInputError reports a directory with no discoverable images
type EmptyInputError struct {
	Dir string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s in %s", ErrEmptyInput, e.Dir)
}

func (e *EmptyInputError) Unwrap() error { return ErrEmptyInput }
