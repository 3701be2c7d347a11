package screen

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteGroup means the input ended before a full pair (two
	// headers and two sequences) could be read.
	ErrIncompleteGroup = errors.New("incomplete heavy/light group at end of input")
	// ErrSameChain means two adjacent records declare the same chain type.
	ErrSameChain = errors.New("adjacent records declare the same chain type")
	// ErrGroupMismatch means adjacent heavy and light records carry different
	// group keys.
	ErrGroupMismatch = errors.New("not a paired sequence")
)

// FormatError reports a record group whose shape prevents pairing. The group
// is skipped.
type FormatError struct {
	Line   int
	Header string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Header, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// PairingError reports adjacent heavy and light records whose group keys
// differ. The records are discarded.
type PairingError struct {
	Line     int
	Key      string
	OtherKey string
}

func (e *PairingError) Error() string {
	return fmt.Sprintf("line %d: %s is %v (partner key %q)", e.Line, e.Key, ErrGroupMismatch, e.OtherKey)
}

func (e *PairingError) Unwrap() error { return ErrGroupMismatch }
