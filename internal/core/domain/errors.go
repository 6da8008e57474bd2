// Package domain provides the command, event and context types shared by the
// RUM core and its adapters.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMonitorStopped is returned when submitting to a monitor that was shut down.
	ErrMonitorStopped = errors.New("monitor stopped")

	// ErrQueueFull is returned when the command queue cannot accept more work.
	ErrQueueFull = errors.New("command queue full")

	// ErrUnknownCommand is returned by codecs for an unrecognised command type.
	ErrUnknownCommand = errors.New("unknown command type")

	// ErrInvalidCommand is returned by codecs for a structurally invalid command.
	ErrInvalidCommand = errors.New("invalid command")
)

// CommandErrorType is the category of a CommandError.
type CommandErrorType string

const (
	CommandErrorInvalid     CommandErrorType = "invalid_command"
	CommandErrorUnknown     CommandErrorType = "unknown_command"
	CommandErrorUnavailable CommandErrorType = "unavailable"
)

// CommandError describes why a command could not be accepted at the edge of the
// system (codec or monitor). The scope tree itself never fails.
type CommandError struct {
	Type    CommandErrorType `json:"type"`
	Message string           `json:"message"`
	// Field is the offending envelope field, if any.
	Field string `json:"field,omitempty"`
	Err   error  `json:"-"`
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the sentinel error for errors.Is.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status code used by the intake server.
func (e *CommandError) HTTPStatusCode() int {
	switch e.Type {
	case CommandErrorInvalid, CommandErrorUnknown:
		return http.StatusBadRequest
	case CommandErrorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewInvalidCommandError reports a missing or malformed envelope field.
func NewInvalidCommandError(field, message string) *CommandError {
	return &CommandError{Type: CommandErrorInvalid, Field: field, Message: message, Err: ErrInvalidCommand}
}

// NewUnknownCommandError reports an unrecognised command type.
func NewUnknownCommandError(commandType string) *CommandError {
	return &CommandError{
		Type:    CommandErrorUnknown,
		Field:   "type",
		Message: fmt.Sprintf("unsupported command %q", commandType),
		Err:     ErrUnknownCommand,
	}
}

// AsCommandError converts monitor errors into a CommandError.
func AsCommandError(err error) *CommandError {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, ErrMonitorStopped) || errors.Is(err, ErrQueueFull) {
		return &CommandError{Type: CommandErrorUnavailable, Message: err.Error(), Err: err}
	}
	return &CommandError{Type: CommandErrorInvalid, Message: err.Error(), Err: err}
}
