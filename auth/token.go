package auth

import (
	"github.com/ggoodman/lti1p3-go/message"
	"github.com/ggoodman/lti1p3-go/registration"
	"github.com/ggoodman/lti1p3-go/validation"
)

// Token is the identity established for one request. It is immutable.
type Token struct {
	kind          Kind
	roleNames     []string
	credentials   string
	userID        string
	result        *validation.Result
	authenticated bool
}

func newToken(kind Kind, result *validation.Result, claims func(*validation.Result) (roles []string, credentials, userID string)) *Token {
	t := &Token{kind: kind, result: result, roleNames: []string{}}
	if result == nil {
		return t
	}
	t.authenticated = !result.HasError()
	roles, creds, user := claims(result)
	if roles != nil {
		t.roleNames = roles
	}
	t.credentials = creds
	t.userID = user
	return t
}

// NewToolMessageToken builds the token for a platform-originating launch.
// Roles and user are only surfaced when validation succeeded.
func NewToolMessageToken(result *validation.Result) *Token {
	return newToken(KindToolMessage, result, toolMessageClaims)
}

// NewPlatformMessageToken builds the token for a tool-originating message.
// Platform message tokens never carry roles.
func NewPlatformMessageToken(result *validation.Result) *Token {
	return newToken(KindPlatformMessage, result, platformMessageClaims)
}

// NewServiceToken builds the token for a service call. Granted scopes become
// the role names.
func NewServiceToken(result *validation.Result) *Token {
	return newToken(KindService, result, serviceClaims)
}

func toolMessageClaims(r *validation.Result) ([]string, string, string) {
	if r.Payload == nil {
		return nil, "", ""
	}
	if r.HasError() {
		return nil, r.Payload.Token(), ""
	}
	var user string
	if ui := r.Payload.UserIdentity(); ui != nil {
		user = ui.Identifier
	}
	return r.Payload.Roles(), r.Payload.Token(), user
}

func platformMessageClaims(r *validation.Result) ([]string, string, string) {
	if r.Payload == nil {
		return nil, "", ""
	}
	return nil, r.Payload.Token(), ""
}

func serviceClaims(r *validation.Result) ([]string, string, string) {
	var user string
	if r.Registration != nil {
		user = r.Registration.Tool.Name
	}
	return append([]string(nil), r.Scopes...), r.Token, user
}

func (t *Token) Kind() Kind { return t.kind }

// RoleNames never returns nil.
func (t *Token) RoleNames() []string { return append([]string{}, t.roleNames...) }

// Credentials returns the raw compact token the identity was built from.
func (t *Token) Credentials() string { return t.credentials }

// UserIdentifier is empty for anonymous launches and platform messages.
func (t *Token) UserIdentifier() string { return t.userID }

func (t *Token) IsAuthenticated() bool { return t.authenticated }

func (t *Token) ValidationResult() *validation.Result { return t.result }

func (t *Token) Registration() *registration.Registration {
	if t.result == nil {
		return nil
	}
	return t.result.Registration
}

func (t *Token) Payload() *message.Payload {
	if t.result == nil {
		return nil
	}
	return t.result.Payload
}

// Scopes returns the scopes granted to a service token.
func (t *Token) Scopes() []string {
	if t.result == nil {
		return nil
	}
	return append([]string(nil), t.result.Scopes...)
}
