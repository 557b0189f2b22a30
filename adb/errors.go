package adb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind identifies why an external command could not produce usable output
type ErrorKind string

const (
	ErrKindNotFound ErrorKind = "NOT_FOUND"
	ErrKindSpawn    ErrorKind = "SPAWN_FAILED"
	ErrKindExit     ErrorKind = "NON_ZERO_EXIT"
	ErrKindTimeout  ErrorKind = "TIMEOUT"
	ErrKindCanceled ErrorKind = "CANCELED"
	ErrKindDecode   ErrorKind = "DECODE_FAILED"
)

// ExecError describes a failed external command invocation
type ExecError struct {
	Kind     ErrorKind
	Command  string
	Args     []string
	ExitCode int    // only meaningful for ErrKindExit
	Stderr   string // trimmed, possibly truncated
	Cause    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.CommandLine())
	if e.Kind == ErrKindExit {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

func (e *ExecError) Unwrap() error {
	return e.Cause
}

// CommandLine renders the invocation for diagnostics
func (e *ExecError) CommandLine() string {
	if len(e.Args) == 0 {
		return e.Command
	}
	return e.Command + " " + strings.Join(e.Args, " ")
}

// IsKind reports whether err wraps an ExecError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		return false
	}
	return execErr.Kind == kind
}

// KindOf extracts the ExecError kind, or "" when err is not an ExecError
func KindOf(err error) ErrorKind {
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		return ""
	}
	return execErr.Kind
}
