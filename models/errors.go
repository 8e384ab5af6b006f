package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write breaks a uniqueness or reference constraint
var ErrConflict = errors.New("conflict")

// Error joins the messages so ValidationErrors can be returned as an error
func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, err := range ve {
		if err.Field != "" {
			parts[i] = err.Field + ": " + err.Message
		} else {
			parts[i] = err.Message
		}
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// PersistenceError reports that an audit entry could not be appended.
// The business mutation that produced it is unaffected.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("audit persistence failed (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ExportLimitError is returned when an export would exceed the maximum row count
type ExportLimitError struct {
	Limit int
	Count int64
}

func (e *ExportLimitError) Error() string {
	return fmt.Sprintf("export would return %d rows, more than the maximum of %d; narrow the filters and try again", e.Count, e.Limit)
}

// ReferenceUnresolvedWarning describes a foreign key that no longer
// resolves to a reference row. It is logged, never returned to callers.
type ReferenceUnresolvedWarning struct {
	Kind ReferenceKind
	ID   int64
}

func (w ReferenceUnresolvedWarning) Error() string {
	return fmt.Sprintf("unresolved %s reference with id %d", w.Kind, w.ID)
}
