// Package apierr defines the error taxonomy shared by the ingest core and
// the HTTP surface: not-found, conflict, validation, and integrity, per
// spec section 7. Any other error, including one that fails an ingest
// job, has KindInternal.
package apierr

import (
	"go.chromium.org/luci/common/errors"
)

// Kind classifies an error for HTTP status mapping and operator triage.
type Kind int

const (
	// KindInternal is any error that doesn't map to a sharper kind.
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	// KindIntegrity marks a dedupe/unique-constraint collision. Callers
	// that see this kind should treat it as a silent no-op, never
	// surface it.
	KindIntegrity
)

// Error wraps an underlying cause with a Kind and a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a not-found error for the given entity description.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Conflict builds a conflict error, e.g. a finalized upload or missing
// chunks.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// Validation builds a validation error, e.g. an empty search query.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Annotate wraps err with msg, preserving its Kind if it is an *Error and
// otherwise keeping go.chromium.org/luci/common/errors' annotation trail.
func Annotate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return &Error{Kind: ae.Kind, Msg: msg, Err: ae}
	}
	return errors.Annotate(err, msg).Err()
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	if ae, ok := err.(*Error); ok {
		return ae.Kind
	}
	return KindInternal
}
