// Package errors wraps github.com/pkg/errors and adds a Fatal marker for
// errors that must abort the owning Packer or Indexer outright, mirroring
// restic's internal/errors package.
package errors

import (
	"github.com/pkg/errors"
)

// New returns an error with the supplied message.
func New(message string) error {
	return errors.New(message)
}

// Errorf formats according to a format specifier and returns the string as
// an error.
func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Wrap annotates err with a message. It returns nil if err is nil.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message. It returns nil if err is
// nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Cause returns the underlying cause of err, if it implements Causer.
func Cause(err error) error {
	return errors.Cause(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// Fatal marks message as a fatal error: one that must abort the current
// Packer or Indexer operation rather than be retried locally.
func Fatal(message string) error {
	return &fatalError{err: errors.New(message)}
}

// Fatalf is like Fatal but allows format strings.
func Fatalf(format string, args ...interface{}) error {
	return &fatalError{err: errors.Errorf(format, args...)}
}

// IsFatal reports whether err (or a cause in its chain) was created by
// Fatal or Fatalf.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}
