package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ggoodman/lti1p3-go/auth"
	"github.com/ggoodman/lti1p3-go/service"
	"github.com/ggoodman/lti1p3-go/validation"
)

type identity struct {
	Authenticated bool     `json:"authenticated"`
	Kind          string   `json:"kind,omitempty"`
	Registration  string   `json:"registration,omitempty"`
	User          string   `json:"user,omitempty"`
	Roles         []string `json:"roles"`
	MessageType   string   `json:"message_type,omitempty"`
}

// serveIdentity reports the identity the firewall established for the
// request. Requests outside every zone are reported as anonymous.
func serveIdentity(w http.ResponseWriter, r *http.Request) {
	out := identity{Roles: []string{}}
	if tok, ok := auth.TokenFromContext(r.Context()); ok {
		out.Authenticated = tok.IsAuthenticated()
		out.Kind = tok.Kind().String()
		out.User = tok.UserIdentifier()
		out.Roles = tok.RoleNames()
		if reg := tok.Registration(); reg != nil {
			out.Registration = reg.Identifier
		}
		if p := tok.Payload(); p != nil {
			out.MessageType = p.MessageType()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// identityService reports the validated access token of a service call.
type identityService struct{}

func (identityService) ServiceName() string { return "identity" }
func (identityService) AllowedMethods() []string { return []string{http.MethodGet} }
func (identityService) AllowedContentType() string { return "application/json" }

func (identityService) HandleValidatedServiceRequest(ctx context.Context, res *validation.Result, _ *http.Request) (*service.Response, error) {
	out := map[string]any{
		"registration": res.Registration.Identifier,
		"scopes":       res.Scopes,
		"validations":  res.Successes,
	}
	if tok, ok := auth.TokenFromContext(ctx); ok {
		out["user"] = tok.UserIdentifier()
	}
	return service.JSON(http.StatusOK, out)
}
