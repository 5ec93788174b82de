package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ggoodman/lti1p3-go/validation"
)

// Kind identifies the request variant an authenticator handles.
type Kind int

const (
	KindToolMessage Kind = iota + 1
	KindPlatformMessage
	KindService
)

func (k Kind) String() string {
	switch k {
	case KindToolMessage:
		return "tool_message"
	case KindPlatformMessage:
		return "platform_message"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindToolMessage, KindPlatformMessage, KindService} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown authenticator kind %q", s)
}

// failurePrefix is prepended to every authentication error message.
func (k Kind) failurePrefix() string {
	switch k {
	case KindToolMessage:
		return "LTI tool message request authentication failed"
	case KindPlatformMessage:
		return "LTI platform message request authentication failed"
	case KindService:
		return "LTI service request authentication failed"
	default:
		return "LTI request authentication failed"
	}
}

var (
	// ErrMalformedToken indicates the carried credential could not be decoded.
	ErrMalformedToken = errors.New("malformed token")
	// ErrValidationFailure indicates the engine rejected the credential.
	ErrValidationFailure = errors.New("validation failure")
	// ErrMessageTypeMismatch indicates a valid message of a type the zone
	// does not accept.
	ErrMessageTypeMismatch = errors.New("message type mismatch")
	// ErrMissingCredential indicates the request carries no credential.
	ErrMissingCredential = errors.New("missing credential")
)

// AuthenticationError is returned by Authenticate.
type AuthenticationError struct {
	Kind Kind
	// Reason is one of the sentinel errors of this package.
	Reason error
	// Message is the detail shown after the kind prefix.
	Message string
	// Err is the underlying engine error, if any.
	Err error
}

func (e *AuthenticationError) Error() string {
	return e.Kind.failurePrefix() + ": " + e.Message
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// Is matches the Reason sentinel.
func (e *AuthenticationError) Is(target error) bool { return target == e.Reason }

func newError(kind Kind, reason error, message string, cause error) *AuthenticationError {
	if message == "" {
		if cause != nil {
			message = cause.Error()
		} else {
			message = reason.Error()
		}
	}
	return &AuthenticationError{Kind: kind, Reason: reason, Message: message, Err: cause}
}

// engineError classifies an error returned by the validation engine.
func engineError(kind Kind, err error) *AuthenticationError {
	if errors.Is(err, validation.ErrMalformedToken) {
		return newError(kind, ErrMalformedToken, "", err)
	}
	return newError(kind, ErrValidationFailure, "", err)
}

// Authenticator authenticates one kind of request for one zone.
type Authenticator interface {
	Kind() Kind
	Zone() Zone
	// Supports reports whether r carries this authenticator's credential and
	// zone is the one it is bound to. It never calls the validation engine.
	Supports(r *http.Request, zone Zone) bool
	// Authenticate returns a Token or an *AuthenticationError.
	Authenticate(ctx context.Context, r *http.Request) (*Token, error)
}
