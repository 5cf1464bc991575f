package runs

import (
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// ValidationError reports an invalid run request. It is surfaced before any
// network activity begins.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// IngestionError wraps a failure inside a crawl run.
type IngestionError struct {
	Err error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed: %v", e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
