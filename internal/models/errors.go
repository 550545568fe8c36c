package models

import (
	"errors"
	"fmt"
)

// ErrorKind separates bad input from upstream provider failures and bugs.
type ErrorKind string

const (
	KindInput    ErrorKind = "input"
	KindUpstream ErrorKind = "upstream"
	KindInternal ErrorKind = "internal"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrUndecodableText   = errors.New("text is not valid UTF-8")
	ErrCorruptDocument   = errors.New("document could not be parsed")
	ErrNoExtractableText = errors.New("no extractable text found in document")
	ErrMissingFile       = errors.New("file is required")
	ErrMissingQuestion   = errors.New("question is required")
)

// Error carries the kind and the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func InputError(op string, err error) error {
	return &Error{Kind: KindInput, Op: op, Err: err}
}

func UpstreamError(op string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

func InternalError(op string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf reports the kind of err. Untyped errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
