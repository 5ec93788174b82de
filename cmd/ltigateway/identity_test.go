package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ggoodman/lti1p3-go/auth"
	"github.com/ggoodman/lti1p3-go/auth/authtest"
	"github.com/ggoodman/lti1p3-go/message"
	"github.com/ggoodman/lti1p3-go/service"
)

func TestServeIdentity(t *testing.T) {
	res := authtest.MessageResult("raw", map[string]any{
		"sub":                    "user1",
		message.ClaimMessageType: message.TypeResourceLinkRequest,
		message.ClaimRoles:       []any{"Learner"},
	})
	r := httptest.NewRequest(http.MethodGet, "/tool/launch", nil)
	r = r.WithContext(auth.WithToken(r.Context(), auth.NewToolMessageToken(res)))
	w := httptest.NewRecorder()

	serveIdentity(w, r)

	var got identity
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Authenticated || got.Kind != "tool_message" || got.User != "user1" || got.Registration != "testRegistration" {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if got.MessageType != message.TypeResourceLinkRequest || len(got.Roles) != 1 {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestServeIdentity_Anonymous(t *testing.T) {
	w := httptest.NewRecorder()
	serveIdentity(w, httptest.NewRequest(http.MethodGet, "/", nil))
	var got identity
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Authenticated || got.Roles == nil {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestIdentityService(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/service/identity", nil)
	r.Header.Set("Accept", "application/json")
	tok := auth.NewServiceToken(authtest.ServiceResult("access-token", "scope1"))
	r = r.WithContext(auth.WithToken(r.Context(), tok))
	w := httptest.NewRecorder()

	service.NewHTTPHandler(identityService{}).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["registration"] != "testRegistration" || got["user"] != "Test Tool" {
		t.Fatalf("unexpected body: %v", got)
	}
}
