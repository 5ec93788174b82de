// Package authtest provides fake validation engines for tests of code built
// on package auth.
package authtest

import (
	"context"
	"net/http"
	"sync"

	"github.com/ggoodman/lti1p3-go/message"
	"github.com/ggoodman/lti1p3-go/registration"
	"github.com/ggoodman/lti1p3-go/validation"
)

// Validator is a fake engine implementing every validation interface. It
// returns Result and Err as configured and records the calls it receives.
type Validator struct {
	Result *validation.Result
	Err    error

	mu     sync.Mutex
	calls  int
	scopes [][]string
}

var (
	_ validation.ToolLaunchValidator     = (*Validator)(nil)
	_ validation.PlatformLaunchValidator = (*Validator)(nil)
	_ validation.AccessTokenValidator    = (*Validator)(nil)
)

func (v *Validator) ValidatePlatformOriginatingLaunch(context.Context, *http.Request) (*validation.Result, error) {
	v.record(nil)
	return v.Result, v.Err
}

func (v *Validator) ValidateToolOriginatingLaunch(context.Context, *http.Request) (*validation.Result, error) {
	v.record(nil)
	return v.Result, v.Err
}

func (v *Validator) Validate(_ context.Context, _ *http.Request, allowedScopes []string) (*validation.Result, error) {
	v.record(allowedScopes)
	return v.Result, v.Err
}

func (v *Validator) record(scopes []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.scopes = append(v.scopes, append([]string(nil), scopes...))
}

// Calls returns how many times the engine was invoked.
func (v *Validator) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// LastScopes returns the allowed scopes passed to the most recent Validate.
func (v *Validator) LastScopes() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.scopes) == 0 {
		return nil
	}
	return v.scopes[len(v.scopes)-1]
}

// Registration returns a registration suitable for fake results.
func Registration() *registration.Registration {
	return &registration.Registration{
		Identifier:    "testRegistration",
		ClientID:      "client_id",
		Platform:      registration.Platform{Identifier: "testPlatform", Name: "Test Platform", Audience: "http://platform.com"},
		Tool:          registration.Tool{Identifier: "testTool", Name: "Test Tool", Audience: "http://tool.com"},
		DeploymentIDs: []string{"deploymentId1"},
	}
}

// MessageResult builds a successful message validation result.
func MessageResult(token string, claims map[string]any) *validation.Result {
	return &validation.Result{
		Registration: Registration(),
		Payload:      message.NewPayload(token, claims),
		Token:        token,
	}
}

// ServiceResult builds a successful access token validation result.
func ServiceResult(token string, scopes ...string) *validation.Result {
	return &validation.Result{
		Registration: Registration(),
		Token:        token,
		Scopes:       scopes,
	}
}
