// Copyright 2024-2026 Aiku AI

package importer

import (
	"errors"
	"fmt"
)

// FatalError aborts an import run. Op names the step that failed.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(op string, err error) *FatalError {
	return &FatalError{Op: op, Err: err}
}

// SkipError is reported for an attachment that could not be delivered. The
// rest of the record and the run continue.
type SkipError struct {
	Record int
	File   string
	Err    error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped attachment %s of record #%d: %v", e.File, e.Record, e.Err)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err, or anything it wraps, is a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
