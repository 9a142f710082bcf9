package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParse matches every *ParseError.
var ErrParse = errors.New("parse error")

// ParseError is a syntax or structure error in a query. Line and Column
// are 1-based; both are 0 when the error has no position.
type ParseError struct {
	Message string
	Line    int
	Column  int
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("parse error: %s", e.Message)
	}
	msg := fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
	if e.Snippet != "" {
		msg += "\n" + e.Snippet
	}
	return msg
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// newParseError builds an error pointing at line:column of source, with the
// offending line and a caret below the column.
func newParseError(source string, line, column int, format string, args ...any) *ParseError {
	return &ParseError{
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Column:  column,
		Snippet: snippet(source, line, column),
	}
}

func snippet(source string, line, column int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}
	text := strings.TrimRight(lines[line-1], "\r")
	if column < 1 {
		column = 1
	}
	return text + "\n" + strings.Repeat(" ", column-1) + "^"
}
