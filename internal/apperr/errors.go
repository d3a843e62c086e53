package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindInvalidToken
	KindTokenExpired
	KindInvalidCredential
	KindAccountDeactivated
	KindForbidden
	KindNotFound
	KindConflict
	KindNotConfigured
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindInternal:           "internal",
	KindValidation:         "validation",
	KindUnauthenticated:    "unauthenticated",
	KindInvalidToken:       "invalid_token",
	KindTokenExpired:       "token_expired",
	KindInvalidCredential:  "invalid_credential",
	KindAccountDeactivated: "account_deactivated",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindNotConfigured:      "not_configured",
	KindRateLimited:        "rate_limited",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Status returns the HTTP status code a failure of this kind is rendered with.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindNotConfigured:
		return fiber.StatusBadRequest
	case KindUnauthenticated, KindInvalidToken, KindTokenExpired, KindInvalidCredential:
		return fiber.StatusUnauthorized
	case KindAccountDeactivated, KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// Error is the failure type returned by services and handlers. Message is
// safe to show to clients; Err carries the raw cause for logs.
type Error struct {
	Kind    Kind
	Message string
	// Details lists individual problems, e.g. every failed field check.
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error        { return New(KindValidation, msg) }
func Forbidden(msg string) *Error         { return New(KindForbidden, msg) }
func NotFound(msg string) *Error          { return New(KindNotFound, msg) }
func Conflict(msg string) *Error          { return New(KindConflict, msg) }
func InvalidCredential(msg string) *Error { return New(KindInvalidCredential, msg) }

// ValidationDetails reports several failed checks at once.
func ValidationDetails(msg string, details []string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func Internal(msg string, err error) *Error {
	return Wrap(KindInternal, msg, err)
}

// KindOf reports the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
