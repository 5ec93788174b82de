// Package validation defines the LTI 1.3 validation engine consumed by the
// auth package, plus Validator, a reference engine backed by the
// registration repository.
package validation

import (
	"context"
	"errors"
	"net/http"

	"github.com/ggoodman/lti1p3-go/message"
	"github.com/ggoodman/lti1p3-go/registration"
)

// ErrMalformedToken is returned when a carried token cannot be decoded at all.
var ErrMalformedToken = errors.New("malformed token")

// Result is the outcome of one validation. It is never mutated once returned.
type Result struct {
	Registration *registration.Registration
	// Payload is set for message validations. Access token validations leave
	// it nil.
	Payload *message.Payload
	// Token is the raw compact credential that was validated.
	Token string
	// Scopes granted by an access token.
	Scopes []string

	Successes []string
	Failure   error
}

// HasError reports whether validation failed.
func (r *Result) HasError() bool { return r.Failure != nil }

// ToolLaunchValidator validates platform-originating messages received by a
// tool (id_token carrier).
type ToolLaunchValidator interface {
	ValidatePlatformOriginatingLaunch(ctx context.Context, r *http.Request) (*Result, error)
}

// PlatformLaunchValidator validates tool-originating messages received by a
// platform (JWT carrier).
type PlatformLaunchValidator interface {
	ValidateToolOriginatingLaunch(ctx context.Context, r *http.Request) (*Result, error)
}

// AccessTokenValidator validates service access tokens. allowedScopes may be
// empty, meaning any scope is accepted.
type AccessTokenValidator interface {
	Validate(ctx context.Context, r *http.Request, allowedScopes []string) (*Result, error)
}
