package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions with no extra payload.
var (
	// ErrNoEntryPoint means no script of a recognized class was found
	// within the discovery depth bound of the tree root.
	ErrNoEntryPoint = errors.New("no entry-point script found near the tree root")

	// ErrUserCancelled means an interactive file selection was abandoned.
	ErrUserCancelled = errors.New("file selection cancelled")

	// ErrPathResolution means a supplied file path has no parent
	// directory to resolve siblings against.
	ErrPathResolution = errors.New("path has no parent directory")
)

// InvalidExtensionError rejects a file path whose extension is not one of
// the four recognized model/place encodings.
type InvalidExtensionError struct {
	Path string
}

func (e *InvalidExtensionError) Error() string {
	return fmt.Sprintf("unsupported file extension on %q (want rbxm, rbxl, rbxmx or rbxlx)", e.Path)
}

// MissingSourceError means a node expected to carry script text has no
// string-valued Source property.
type MissingSourceError struct {
	Name string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("script %q has no string Source property", e.Name)
}

// SyntaxProblem is one parser diagnostic with a 1-based position.
type SyntaxProblem struct {
	Line    int
	Column  int
	Message string
}

func (p SyntaxProblem) String() string {
	return fmt.Sprintf("%d:%d: %s", p.Line, p.Column, p.Message)
}

// SyntaxError aggregates every diagnostic the parser reported for one
// script. Any syntax error aborts the whole run.
type SyntaxError struct {
	Script   string
	Problems []SyntaxProblem
}

func (e *SyntaxError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.String())
	}

	return fmt.Sprintf("syntax errors in %q: %s", e.Script, strings.Join(msgs, "; "))
}

// CodecError tags a document codec failure with the operation and the
// encoding in play.
type CodecError struct {
	Op     string // "decode" or "encode"
	Format string // "xml" or "binary"
	Err    error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("failed to %s %s document: %v", e.Op, e.Format, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}
