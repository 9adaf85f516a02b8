package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type FetchKind int

const (
	// FetchNetwork covers connection, DNS and timeout failures.
	FetchNetwork FetchKind = iota + 1
	// FetchHTTPStatus means the server answered with a non-2xx status.
	FetchHTTPStatus
	// FetchDecode means the response body could not be read.
	FetchDecode
)

func (k FetchKind) String() string {
	switch k {
	case FetchNetwork:
		return "network"
	case FetchHTTPStatus:
		return "http status"
	case FetchDecode:
		return "decode"
	default:
		return "unknown"
	}
}

type FetchError struct {
	URI        string
	Kind       FetchKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchHTTPStatus {
		return fmt.Sprintf("fetch %s: unexpected status: %d", e.URI, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s error: %v", e.URI, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StoreError is a persistence failure that is neither a lookup miss nor a
// uniqueness violation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
