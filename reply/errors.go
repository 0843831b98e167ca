package reply

import (
	"errors"
)

type Kind int

const (
	NotAuthenticated Kind = iota + 1
	ValidationFailed
	BackendRejected
	NetworkError
)

func (k Kind) String() string {
	switch k {
	case NotAuthenticated:
		return "not_authenticated"
	case ValidationFailed:
		return "validation_failed"
	case BackendRejected:
		return "backend_rejected"
	case NetworkError:
		return "network_error"
	}
	return "unknown"
}

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrValidationFailed = errors.New("reply text is empty")
	ErrBackendRejected  = errors.New("backend rejected the request")
	ErrNetwork          = errors.New("backend unreachable")
)

// Error is returned for every failed submission. Message is meant for the
// end user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotAuthenticated:
		return e.Kind == NotAuthenticated
	case ErrValidationFailed:
		return e.Kind == ValidationFailed
	case ErrBackendRejected:
		return e.Kind == BackendRejected
	case ErrNetwork:
		return e.Kind == NetworkError
	}
	return false
}

// KindOf returns the kind of a submission error, or 0 for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
