package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork: gateway unreachable or timed out.
	KindNetwork
	// KindValidation: rejected by the remote authority, e.g. duplicate name.
	KindValidation
	// KindNotFound: the target no longer exists remotely.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrNetwork    = errors.New("remote unreachable")
	ErrValidation = errors.New("rejected by remote")
	ErrNotFound   = errors.New("not found")
)

// Error is a classified gateway failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// Network wraps err as a network failure of op.
func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Validation builds a validation failure of op.
func Validation(op, message string) error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// NotFound builds a not-found failure of op.
func NotFound(op, message string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// AsError checks if err is a gateway Error and returns it.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if ge, ok := AsError(err); ok {
		return ge.Kind
	}
	return KindUnknown
}

// IsNetwork reports whether err is a network failure.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
