package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ggoodman/lti1p3-go/internal/carrier"
	"github.com/ggoodman/lti1p3-go/validation"
)

// ToolMessageAuthenticator authenticates platform-originating launches
// (id_token) received by a tool.
type ToolMessageAuthenticator struct {
	zone      Zone
	validator validation.ToolLaunchValidator
}

// NewToolMessageAuthenticator binds v to zone.
func NewToolMessageAuthenticator(zone Zone, v validation.ToolLaunchValidator) *ToolMessageAuthenticator {
	return &ToolMessageAuthenticator{zone: zone.Copy(), validator: v}
}

func (a *ToolMessageAuthenticator) Kind() Kind { return KindToolMessage }
func (a *ToolMessageAuthenticator) Zone() Zone { return a.zone.Copy() }

func (a *ToolMessageAuthenticator) Supports(r *http.Request, zone Zone) bool {
	return zone.Name == a.zone.Name && carrier.Param(r, carrier.IDTokenParam) != ""
}

func (a *ToolMessageAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Token, error) {
	res, err := a.validator.ValidatePlatformOriginatingLaunch(ctx, r)
	if err != nil {
		return nil, engineError(KindToolMessage, err)
	}
	if err := checkMessageResult(KindToolMessage, res, a.zone); err != nil {
		return nil, err
	}
	return NewToolMessageToken(res), nil
}

// PlatformMessageAuthenticator authenticates tool-originating messages (JWT)
// received by a platform.
type PlatformMessageAuthenticator struct {
	zone      Zone
	validator validation.PlatformLaunchValidator
}

// NewPlatformMessageAuthenticator binds v to zone.
func NewPlatformMessageAuthenticator(zone Zone, v validation.PlatformLaunchValidator) *PlatformMessageAuthenticator {
	return &PlatformMessageAuthenticator{zone: zone.Copy(), validator: v}
}

func (a *PlatformMessageAuthenticator) Kind() Kind { return KindPlatformMessage }
func (a *PlatformMessageAuthenticator) Zone() Zone { return a.zone.Copy() }

func (a *PlatformMessageAuthenticator) Supports(r *http.Request, zone Zone) bool {
	return zone.Name == a.zone.Name && carrier.Param(r, carrier.JWTParam) != ""
}

func (a *PlatformMessageAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Token, error) {
	res, err := a.validator.ValidateToolOriginatingLaunch(ctx, r)
	if err != nil {
		return nil, engineError(KindPlatformMessage, err)
	}
	if err := checkMessageResult(KindPlatformMessage, res, a.zone); err != nil {
		return nil, err
	}
	return NewPlatformMessageToken(res), nil
}

// ServiceAuthenticator authenticates LTI service calls bearing an access
// token.
type ServiceAuthenticator struct {
	zone      Zone
	validator validation.AccessTokenValidator
}

// NewServiceAuthenticator binds v to zone. The zone's AllowedScopes are
// passed to the engine on every call.
func NewServiceAuthenticator(zone Zone, v validation.AccessTokenValidator) *ServiceAuthenticator {
	return &ServiceAuthenticator{zone: zone.Copy(), validator: v}
}

func (a *ServiceAuthenticator) Kind() Kind { return KindService }
func (a *ServiceAuthenticator) Zone() Zone { return a.zone.Copy() }

func (a *ServiceAuthenticator) Supports(r *http.Request, zone Zone) bool {
	return zone.Name == a.zone.Name && carrier.Authorization(r) != ""
}

func (a *ServiceAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Token, error) {
	if carrier.Authorization(r) == "" {
		return nil, newError(KindService, ErrMissingCredential, "Missing Authorization header", nil)
	}
	res, err := a.validator.Validate(ctx, r, a.zone.AllowedScopes)
	if err != nil {
		return nil, engineError(KindService, err)
	}
	if res == nil {
		return nil, newError(KindService, ErrValidationFailure, "Missing validation result", nil)
	}
	if res.HasError() {
		return nil, newError(KindService, ErrValidationFailure, "", res.Failure)
	}
	return NewServiceToken(res), nil
}

func checkMessageResult(kind Kind, res *validation.Result, zone Zone) error {
	if res == nil {
		return newError(kind, ErrValidationFailure, "Missing validation result", nil)
	}
	if res.HasError() {
		return newError(kind, ErrValidationFailure, "", res.Failure)
	}
	if res.Payload == nil {
		return newError(kind, ErrValidationFailure, "LTI Message Payload required", nil)
	}
	if CheckMessageType(res.Payload.MessageType(), zone.AllowedMessageTypes) == GateRejected {
		return newError(kind, ErrMessageTypeMismatch, fmt.Sprintf("Invalid LTI message type %s", res.Payload.MessageType()), nil)
	}
	return nil
}

// MissingCredential builds the error reported when a zone requires a
// credential and the request carries none.
func MissingCredential(kind Kind) *AuthenticationError {
	var msg string
	switch kind {
	case KindToolMessage:
		msg = "Missing " + carrier.IDTokenParam + " parameter"
	case KindPlatformMessage:
		msg = "Missing " + carrier.JWTParam + " parameter"
	default:
		msg = "Missing Authorization header"
	}
	return newError(kind, ErrMissingCredential, msg, nil)
}

var (
	_ Authenticator = (*ToolMessageAuthenticator)(nil)
	_ Authenticator = (*PlatformMessageAuthenticator)(nil)
	_ Authenticator = (*ServiceAuthenticator)(nil)
)

