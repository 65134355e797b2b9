// Package errz defines the compile-time and run-time errors produced by maestro.
package errz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/maestro-lang/maestro/token"
)

// SourceLocation is a resolved position in a source unit.
type SourceLocation struct {
	URI    string
	Line   int    // 1-indexed
	Column int    // 1-indexed
	Length int    // length of the highlighted range on Line
	Source string // text of Line
}

// IsZero returns true if the location is unset.
func (l SourceLocation) IsZero() bool {
	return l.Line == 0 && l.Column == 0
}

func (l SourceLocation) String() string {
	if l.IsZero() {
		return l.URI
	}
	if l.URI == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.URI, l.Line, l.Column)
}

// LocationOf resolves slice within content into a line and column.
func LocationOf(uri, content string, slice token.Slice) SourceLocation {
	index := slice.Index
	if index < 0 {
		return SourceLocation{URI: uri}
	}
	if index > len(content) {
		index = len(content)
	}
	line := 1 + strings.Count(content[:index], "\n")
	lineStart := strings.LastIndexByte(content[:index], '\n') + 1
	lineEnd := strings.IndexByte(content[index:], '\n')
	if lineEnd < 0 {
		lineEnd = len(content)
	} else {
		lineEnd += index
	}
	length := slice.Length
	if index+length > lineEnd {
		length = lineEnd - index
	}
	return SourceLocation{
		URI:    uri,
		Line:   line,
		Column: index - lineStart + 1,
		Length: length,
		Source: content[lineStart:lineEnd],
	}
}

// CompileError is a diagnostic produced while compiling a source unit.
type CompileError struct {
	SourceIndex int
	Slice       token.Slice
	Message     string
	Location    SourceLocation
}

func (e *CompileError) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("compile error: %s", e.Message)
	}
	return fmt.Sprintf("compile error: %s (%s)", e.Message, e.Location)
}

// RuntimeError terminates an execution. It names the command whose frame was
// active and the source location of the failing call site.
type RuntimeError struct {
	Message      string
	CommandIndex int
	CommandName  string
	CodeIndex    int
	Location     SourceLocation
	Cause        error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("runtime error: ")
	b.WriteString(e.Message)
	if e.CommandName != "" {
		fmt.Fprintf(&b, " in command '%s'", e.CommandName)
	}
	if !e.Location.IsZero() {
		fmt.Fprintf(&b, " (%s)", e.Location)
	}
	return b.String()
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// CompileErrors returns every CompileError contained in err, which may be a
// single CompileError or a multierror aggregate.
func CompileErrors(err error) []*CompileError {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		var result []*CompileError
		for _, e := range merr.Errors {
			result = append(result, CompileErrors(e)...)
		}
		return result
	}
	var cerr *CompileError
	if errors.As(err, &cerr) {
		return []*CompileError{cerr}
	}
	return nil
}

// AsRuntimeError extracts a RuntimeError from err.
func AsRuntimeError(err error) (*RuntimeError, bool) {
	var rerr *RuntimeError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}
