package authn

import "errors"

// Kind classifies authentication failures. Callers only ever see the kind
// plus a generic message; backend-specific detail stays in the logs.
type Kind int

const (
	KindInvalidCredentials Kind = iota + 1
	KindSessionNotFound
	KindSessionExpired
	KindTooManyAttempts
	KindBackendUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindSessionNotFound:
		return "session_not_found"
	case KindSessionExpired:
		return "session_expired"
	case KindTooManyAttempts:
		return "too_many_attempts"
	case KindBackendUnavailable:
		return "backend_unavailable"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// ErrInvalidCredentials is deliberately identical for every root cause so
// the credential-submitting side learns nothing from the failure mode.
func ErrInvalidCredentials(cause error) *Error {
	return newError(KindInvalidCredentials, "invalid credentials", cause)
}

func ErrTooManyAttempts() *Error {
	return newError(KindTooManyAttempts, "too many attempts", nil)
}

func ErrSessionNotFound() *Error {
	return newError(KindSessionNotFound, "session not found", nil)
}

func ErrBackendUnavailable(cause error) *Error {
	return newError(KindBackendUnavailable, "backend unavailable", cause)
}

func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
