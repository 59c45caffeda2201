package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the controller can surface.
type ErrorKind int

const (
	// KindUnknown is reported for errors that were never classified.
	KindUnknown ErrorKind = iota
	// KindAuth is terminal: the session is not valid and the user is redirected.
	KindAuth
	// KindFetch is recoverable: the last known good view is kept.
	KindFetch
	// KindValidation is user-correctable: the message is shown and the form kept.
	KindValidation
	// KindCancelled means the user declined a confirmation. It is not a failure.
	KindCancelled
)

// Sentinels usable with errors.Is.
var (
	ErrAuth       = &Error{Kind: KindAuth}
	ErrFetch      = &Error{Kind: KindFetch}
	ErrValidation = &Error{Kind: KindValidation}
	ErrCancelled  = &Error{Kind: KindCancelled}
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth_failure"
	case KindFetch:
		return "fetch_failure"
	case KindValidation:
		return "validation_failure"
	case KindCancelled:
		return "cancelled_by_user"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is safe to show to the user.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrFetch) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// AuthFailure builds a KindAuth error.
func AuthFailure(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Message: msg, Err: err}
}

// FetchFailure builds a KindFetch error.
func FetchFailure(msg string, err error) *Error {
	return &Error{Kind: KindFetch, Message: msg, Err: err}
}

// ValidationFailure builds a KindValidation error whose message is shown verbatim.
func ValidationFailure(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}

// CancelledByUser builds a KindCancelled error.
func CancelledByUser(msg string) *Error {
	return &Error{Kind: KindCancelled, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage returns the text to show for err: the classified message when
// present, otherwise a generic one per kind.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Unexpected error"
	}
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindAuth:
		return "Session expired, please log in again"
	case KindFetch:
		return "Failed to fetch expenses"
	case KindValidation:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "Invalid data"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unexpected error"
	}
}
