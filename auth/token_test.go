package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/ggoodman/lti1p3-go/auth/authtest"
	"github.com/ggoodman/lti1p3-go/message"
	"github.com/ggoodman/lti1p3-go/validation"
)

func launchClaims() map[string]any {
	return map[string]any{
		"sub":                    "user1",
		message.ClaimMessageType: message.TypeResourceLinkRequest,
		message.ClaimRoles:       []any{"Learner", "Instructor"},
	}
}

func TestToken_Authenticated(t *testing.T) {
	failed := authtest.MessageResult("raw", launchClaims())
	failed.Failure = errors.New("boom")

	tests := []struct {
		name   string
		tok    *Token
		authed bool
	}{
		{name: "nil result", tok: NewToolMessageToken(nil), authed: false},
		{name: "failed result", tok: NewToolMessageToken(failed), authed: false},
		{name: "tool ok", tok: NewToolMessageToken(authtest.MessageResult("raw", launchClaims())), authed: true},
		{name: "platform ok", tok: NewPlatformMessageToken(authtest.MessageResult("raw", launchClaims())), authed: true},
		{name: "service ok", tok: NewServiceToken(authtest.ServiceResult("raw", "s")), authed: true},
		{name: "service nil", tok: NewServiceToken(nil), authed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tok.IsAuthenticated(); got != tt.authed {
				t.Fatalf("IsAuthenticated() = %v, want %v", got, tt.authed)
			}
			if tt.tok.RoleNames() == nil {
				t.Fatalf("RoleNames() must never be nil")
			}
		})
	}
}

func TestToken_Claims(t *testing.T) {
	tool := NewToolMessageToken(authtest.MessageResult("raw-id-token", launchClaims()))
	if got := tool.RoleNames(); len(got) != 2 || got[0] != "Learner" {
		t.Fatalf("tool roles = %v", got)
	}
	if tool.Credentials() != "raw-id-token" || tool.UserIdentifier() != "user1" {
		t.Fatalf("tool token = %q/%q", tool.Credentials(), tool.UserIdentifier())
	}

	platform := NewPlatformMessageToken(authtest.MessageResult("raw-jwt", launchClaims()))
	if got := platform.RoleNames(); len(got) != 0 {
		t.Fatalf("platform token must not surface roles, got %v", got)
	}
	if platform.Credentials() != "raw-jwt" {
		t.Fatalf("platform credentials = %q", platform.Credentials())
	}

	svc := NewServiceToken(authtest.ServiceResult("raw-access", "scope1", "scope2"))
	if got := svc.RoleNames(); len(got) != 2 || got[1] != "scope2" {
		t.Fatalf("service roles = %v", got)
	}
	if svc.Credentials() != "raw-access" || svc.UserIdentifier() != "Test Tool" {
		t.Fatalf("service token = %q/%q", svc.Credentials(), svc.UserIdentifier())
	}
}

func TestToken_FailedToolResultHidesIdentity(t *testing.T) {
	res := authtest.MessageResult("raw", launchClaims())
	res.Failure = errors.New("boom")
	tok := NewToolMessageToken(res)
	if len(tok.RoleNames()) != 0 || tok.UserIdentifier() != "" {
		t.Fatalf("failed token leaked identity: %v %q", tok.RoleNames(), tok.UserIdentifier())
	}
	if tok.ValidationResult() != res {
		t.Fatalf("validation result not retained")
	}
}

func TestTokenContext(t *testing.T) {
	if _, ok := TokenFromContext(context.Background()); ok {
		t.Fatalf("expected no token")
	}
	tok := NewServiceToken(&validation.Result{Token: "x"})
	got, ok := TokenFromContext(WithToken(context.Background(), tok))
	if !ok || got != tok {
		t.Fatalf("token not round-tripped")
	}
}
