package chathub

import (
	"errors"
	"fmt"

	"meetsync/backend/internal/models"
)

// ErrorCode is the machine readable code sent in an "error" event.
type ErrorCode string

const (
	CodeUnauthenticated    ErrorCode = "Unauthenticated"
	CodeRoomNotFound       ErrorCode = "RoomNotFound"
	CodeMeetingEnded       ErrorCode = "MeetingEnded"
	CodeAlreadyInRoom      ErrorCode = "AlreadyInRoom"
	CodeNotInRoom          ErrorCode = "NotInRoom"
	CodeUnreachableTarget  ErrorCode = "UnreachableTarget"
	CodeUnauthorized       ErrorCode = "Unauthorized"
	CodeInvalidPayload     ErrorCode = "InvalidPayload"
	CodePersistenceFailure ErrorCode = "PersistenceFailure"
)

// EventError is a failure reported to the connection that caused it. Two EventErrors
// match under errors.Is when their codes are equal.
type EventError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *EventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EventError) Unwrap() error { return e.Err }

func (e *EventError) Is(target error) bool {
	t, ok := target.(*EventError)
	return ok && t.Code == e.Code
}

var (
	ErrRoomNotFound       = &EventError{Code: CodeRoomNotFound, Message: "meeting not found"}
	ErrMeetingEnded       = &EventError{Code: CodeMeetingEnded, Message: "meeting has ended"}
	ErrAlreadyInRoom      = &EventError{Code: CodeAlreadyInRoom, Message: "connection is already in another meeting"}
	ErrNotInRoom          = &EventError{Code: CodeNotInRoom, Message: "not in a meeting"}
	ErrUnreachableTarget  = &EventError{Code: CodeUnreachableTarget, Message: "target is not in this meeting"}
	ErrUnauthorized       = &EventError{Code: CodeUnauthorized, Message: "only the host can do this"}
	ErrInvalidPayload     = &EventError{Code: CodeInvalidPayload, Message: "invalid payload"}
	ErrPersistenceFailure = &EventError{Code: CodePersistenceFailure, Message: "operation failed"}
)

// withMessage returns a copy of base carrying a more specific message.
func withMessage(base *EventError, format string, args ...any) *EventError {
	return &EventError{Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

func invalidPayload(err error) *EventError {
	return &EventError{Code: CodeInvalidPayload, Message: ErrInvalidPayload.Message, Err: err}
}

// persistenceFailure hides the storage error from the client; it stays in the chain for logs.
func persistenceFailure(action string, err error) *EventError {
	return &EventError{Code: CodePersistenceFailure, Message: "failed to " + action, Err: err}
}

// errorData converts any error into the body of an "error" event. Errors that are not
// EventErrors are reported as a generic persistence failure.
func errorData(err error) models.ErrorData {
	var ee *EventError
	if errors.As(err, &ee) {
		return models.ErrorData{Code: string(ee.Code), Message: ee.Message}
	}
	return models.ErrorData{Code: string(CodePersistenceFailure), Message: ErrPersistenceFailure.Message}
}
