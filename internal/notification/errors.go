package notification

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced to callers. Match them with errors.Is.
var (
	// ErrParam covers malformed recipient configuration and transport
	// failures while posting.
	ErrParam = errors.New("notification param error")
	// ErrUnprocessable means the payload could not be built from the content.
	ErrUnprocessable = errors.New("notification unprocessable")
	// ErrAuthorization means the webhook rejected the request with 403.
	ErrAuthorization = errors.New("notification authorization error")
	// ErrMalformed means the webhook answered with a server error or an
	// unexpected non-2xx status.
	ErrMalformed = errors.New("notification malformed")
)

// Error is a classified notification failure.
type Error struct {
	Kind       error
	Message    string
	StatusCode int
	Transient  bool
	Err        error
}

// NewError builds a classified error.
func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: strings.TrimSpace(message), Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("notification error")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsTransient reports whether err is a classified failure worth retrying.
func IsTransient(err error) bool {
	var nerr *Error
	return errors.As(err, &nerr) && nerr.Transient
}

// KindName returns a short label for the error kind, used in logs, metrics
// and delivery history.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParam):
		return "param"
	case errors.Is(err, ErrUnprocessable):
		return "unprocessable"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}

// StatusError classifies a non-2xx webhook response.
func StatusError(channel string, status int, body string) *Error {
	detail := strings.TrimSpace(body)
	var e *Error
	switch {
	case status == 403:
		e = NewError(ErrAuthorization, fmt.Sprintf("An authentication with %s occurred", channel), nil)
	case status == 429:
		e = NewError(ErrParam, fmt.Sprintf("%s rate limited the request", channel), nil)
		e.Transient = true
	case status >= 500:
		e = NewError(ErrMalformed, fmt.Sprintf("A malformed request was made to %s", channel), nil)
	default:
		e = NewError(ErrMalformed, fmt.Sprintf("%s returned unexpected status", channel), nil)
	}
	e.StatusCode = status
	if detail != "" {
		e.Message = fmt.Sprintf("%s (status %d: %s)", e.Message, status, detail)
	} else {
		e.Message = fmt.Sprintf("%s (status %d)", e.Message, status)
	}
	return e
}

// TransportError classifies a failure to reach the webhook at all.
func TransportError(channel string, err error) *Error {
	e := NewError(ErrParam, fmt.Sprintf("send to %s failed", channel), err)
	e.Transient = true
	return e
}
