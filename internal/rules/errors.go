package rules

import (
	"errors"
	"fmt"
)

// Kind classifies a rejection so the transport layer can pick a status code.
type Kind int

const (
	// KindValidation marks malformed or out-of-policy input.
	KindValidation Kind = iota + 1
	// KindNotFound marks a referenced id that does not exist.
	KindNotFound
	// KindConflict marks an illegal state transition or an occupancy conflict.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a business rule rejection. Message is returned to clients verbatim.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first rules.Error in err's chain, or 0.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}

	return 0
}

// MessageOf returns the client facing message of err, if it carries one.
func MessageOf(err error) (string, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Message, true
	}

	return "", false
}
