package parser

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMethod       = errors.New("invalid method")
	ErrInvalidSection      = errors.New("invalid section")
	ErrInvalidStatusCode   = errors.New("failed to parse status code")
	ErrHeaderExpectsKV     = errors.New("header section expects key-value pair")
	ErrPayloadExpectsKV    = errors.New("payload section expects key-value pair")
	ErrInvalidAssertionKey = errors.New("invalid key in assertions section")
)

// ParseError locates a failure inside a document. Kind is one of the Err* sentinels
// and Value holds the offending token, if any. Block and Line are 1-based; Line
// counts lines of the trimmed block.
type ParseError struct {
	File  string
	Block int
	Line  int
	Kind  error
	Value string
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Value != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Value)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: block %d, line %d: %s", e.File, e.Block, e.Line, msg)
	}
	return fmt.Sprintf("block %d, line %d: %s", e.Block, e.Line, msg)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}
