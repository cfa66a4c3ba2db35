package flow

import (
	"errors"
	"fmt"

	"github.com/mpallares/veoctl/internal/storage"
)

// ErrPollTimeout is returned when the attempt budget runs out with no
// artifact. The job may still be running server-side; the user has to
// inspect the output location manually.
var ErrPollTimeout = errors.New("flow: polling timed out; the job may still be running, inspect the output location manually")

// ConfigError indicates bad or missing input detected before any network
// call was made.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SubmitError indicates the service rejected the job or returned no
// operation name. The raw service payload is preserved in the wrapped
// error.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// TransferError indicates the artifact could not be verified or fetched at
// download time. Listing holds the contents of the containing remote
// directory to aid debugging.
type TransferError struct {
	Location storage.Location
	Listing  []storage.Object
	Err      error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("transfer failed for %s: %v", e.Location, e.Err)
	if len(e.Listing) > 0 {
		msg += fmt.Sprintf(" (%d objects present under %s)", len(e.Listing), e.Location.Parent())
	}
	return msg
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// CleanupError indicates the delete-after-download step failed. It is
// reported as a warning and never fails the invocation; the local file
// already exists.
type CleanupError struct {
	Location storage.Location
	Err      error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed for %s: %v", e.Location, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
