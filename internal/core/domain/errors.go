package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is against these
// sentinels; the concrete *Error carries the failing subject for diagnosis.
var (
	ErrNotFound            = errors.New("not found")
	ErrServerNotFound      = errors.New("server not found")
	ErrNameConflict        = errors.New("name conflict")
	ErrIncompatible        = errors.New("incompatible")
	ErrDependencyConflict  = errors.New("dependency conflict")
	ErrDownloadFailed      = errors.New("download failed")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrManifestUnavailable = errors.New("manifest unavailable")
	ErrTimeout             = errors.New("timeout")
	ErrPersistence         = errors.New("persistence error")
	ErrCleanupWarning      = errors.New("cleanup warning")
	ErrInvalidInput        = errors.New("invalid input")
)

// Error is a classified failure. Subject names the server, slug, URL or
// path that failed; Op names the operation that was running.
type Error struct {
	Kind    error
	Op      string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Subject != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Subject)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the error's kind. ServerNotFound also
// matches the general NotFound kind.
func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrServerNotFound && target == ErrNotFound
}

// NewError builds a classified error.
func NewError(kind error, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// NotFoundError reports an absent manifest entry, catalog project or slug.
func NotFoundError(op, subject string, err error) error {
	return NewError(ErrNotFound, op, subject, err)
}

// ServerNotFoundError reports a registry lookup miss.
func ServerNotFoundError(name string) error {
	return NewError(ErrServerNotFound, "", name, nil)
}

// KindOf returns the sentinel kind of err, or nil if err is unclassified.
func KindOf(err error) error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	for _, kind := range []error{
		ErrServerNotFound, ErrNotFound, ErrNameConflict, ErrIncompatible,
		ErrDependencyConflict, ErrDownloadFailed, ErrChecksumMismatch,
		ErrManifestUnavailable, ErrTimeout, ErrPersistence, ErrCleanupWarning,
		ErrInvalidInput,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
