package apperrors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an error for callers and for the reconciler's retry
// policy.
type ErrorCode string

const (
	// Generic taxonomy
	CodeValidation ErrorCode = "VALIDATION_ERROR"
	CodeConflict   ErrorCode = "CONFLICT"
	CodeNotFound   ErrorCode = "NOT_FOUND"
	CodeState      ErrorCode = "STATE_ERROR"
	CodeContention ErrorCode = "CONTENTION"
	CodeUpstream   ErrorCode = "UPSTREAM_ERROR"

	// Draw errors
	CodeDrawNotFound   ErrorCode = "DRAW_NOT_FOUND"
	CodeDrawClosed     ErrorCode = "DRAW_CLOSED"
	CodeAlreadyEntered ErrorCode = "ALREADY_ENTERED"
	CodeFeeMismatch    ErrorCode = "FEE_MISMATCH"
	CodeCapacity       ErrorCode = "CAPACITY_EXCEEDED"
	CodeNotYetClosed   ErrorCode = "NOT_YET_CLOSED"
	CodeAlreadyDone    ErrorCode = "ALREADY_EXECUTED"
	CodeNoParticipants ErrorCode = "NO_PARTICIPANTS"
	CodeNotWinner      ErrorCode = "NOT_WINNER"
	CodeAlreadyClaimed ErrorCode = "ALREADY_CLAIMED"

	// Voting errors
	CodeInitiativeNotFound ErrorCode = "INITIATIVE_NOT_FOUND"
	CodeVotingClosed       ErrorCode = "VOTING_CLOSED"
	CodeAlreadyVoted       ErrorCode = "ALREADY_VOTED"
	CodeInvalidOption      ErrorCode = "INVALID_OPTION"
	CodeVotingStillOpen    ErrorCode = "VOTING_STILL_OPEN"

	// Token errors
	CodeInvalidAmount       ErrorCode = "INVALID_AMOUNT"
	CodeDuplicateEvent      ErrorCode = "DUPLICATE_EVENT"
	CodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
)

// AppError is a typed application error. Domain errors are pure values: an
// operation that returns one has had no side effects.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches two AppErrors by code, so sentinel errors work with errors.Is.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new AppError.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// CodeOf extracts the ErrorCode, or CodeUpstream for unclassified errors
// (store/driver failures reach the caller unclassified).
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUpstream
}

// Is reports whether the error carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsValidation reports whether the error was rejected before any state read.
func IsValidation(err error) bool {
	return CodeOf(err) == CodeValidation || CodeOf(err) == CodeInvalidAmount ||
		CodeOf(err) == CodeInvalidOption || CodeOf(err) == CodeFeeMismatch
}

// IsConflict reports whether a retry of the same input can never succeed.
func IsConflict(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeAlreadyEntered, CodeAlreadyVoted, CodeAlreadyClaimed,
		CodeAlreadyDone, CodeDuplicateEvent:
		return true
	}
	return false
}

// IsNotFound reports whether the referenced aggregate does not exist.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeDrawNotFound, CodeInitiativeNotFound:
		return true
	}
	return false
}

// IsRetryable reports whether the failure is transient: a contention timeout
// or an unavailable upstream. Everything else is terminal for that input.
func IsRetryable(err error) bool {
	code := CodeOf(err)
	return code == CodeContention || code == CodeUpstream
}
