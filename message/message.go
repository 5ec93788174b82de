// Package message decodes the LTI 1.3 claims carried by launch and message
// tokens. It does not verify anything: a Payload is only as trustworthy as the
// validation step that produced it.
package message

import (
	"encoding/json"
	"fmt"
)

// Version is the only LTI version accepted by the validation engine.
const Version = "1.3.0"

// LTI claim names.
const (
	ClaimMessageType        = "https://purl.imsglobal.org/spec/lti/claim/message_type"
	ClaimVersion            = "https://purl.imsglobal.org/spec/lti/claim/version"
	ClaimRoles              = "https://purl.imsglobal.org/spec/lti/claim/roles"
	ClaimDeploymentID       = "https://purl.imsglobal.org/spec/lti/claim/deployment_id"
	ClaimTargetLinkURI      = "https://purl.imsglobal.org/spec/lti/claim/target_link_uri"
	ClaimResourceLink       = "https://purl.imsglobal.org/spec/lti/claim/resource_link"
	ClaimContext            = "https://purl.imsglobal.org/spec/lti/claim/context"
	ClaimLaunchPresentation = "https://purl.imsglobal.org/spec/lti/claim/launch_presentation"
	ClaimCustom             = "https://purl.imsglobal.org/spec/lti/claim/custom"
)

// Known message types.
const (
	TypeResourceLinkRequest     = "LtiResourceLinkRequest"
	TypeDeepLinkingRequest      = "LtiDeepLinkingRequest"
	TypeDeepLinkingResponse     = "LtiDeepLinkingResponse"
	TypeSubmissionReviewRequest = "LtiSubmissionReviewRequest"
	TypeStartProctoring         = "LtiStartProctoring"
	TypeStartAssessment         = "LtiStartAssessment"
	TypeEndAssessment           = "LtiEndAssessment"
)

// UserIdentity is the end user the message was issued for.
type UserIdentity struct {
	Identifier string
	Name       string
	Email      string
	GivenName  string
	FamilyName string
	Locale     string
}

// LaunchPresentation describes how the platform presents the launch.
type LaunchPresentation struct {
	DocumentTarget string `json:"document_target,omitempty"`
	Height         int    `json:"height,omitempty"`
	Width          int    `json:"width,omitempty"`
	ReturnURL      string `json:"return_url,omitempty"`
	Locale         string `json:"locale,omitempty"`
}

type ResourceLink struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type Context struct {
	ID    string   `json:"id"`
	Label string   `json:"label,omitempty"`
	Title string   `json:"title,omitempty"`
	Types []string `json:"type,omitempty"`
}

// Payload is a decoded LTI message token. The zero value is not usable; build
// one with NewPayload.
type Payload struct {
	token  string
	claims map[string]any
}

// NewPayload wraps the raw compact token and its decoded claims. The claims
// map is copied at the top level.
func NewPayload(token string, claims map[string]any) *Payload {
	dup := make(map[string]any, len(claims))
	for k, v := range claims {
		dup[k] = v
	}
	return &Payload{token: token, claims: dup}
}

// Token returns the raw compact token the payload was decoded from.
func (p *Payload) Token() string { return p.token }

func (p *Payload) MessageType() string  { return stringClaim(p.claims, ClaimMessageType) }
func (p *Payload) Version() string      { return stringClaim(p.claims, ClaimVersion) }
func (p *Payload) DeploymentID() string { return stringClaim(p.claims, ClaimDeploymentID) }
func (p *Payload) TargetLinkURI() string {
	return stringClaim(p.claims, ClaimTargetLinkURI)
}
func (p *Payload) Nonce() string { return stringClaim(p.claims, "nonce") }

// HasRoles reports whether the roles claim is present at all (it may be empty).
func (p *Payload) HasRoles() bool {
	_, ok := p.claims[ClaimRoles]
	return ok
}

// Roles returns the LTI roles claim. Non-string entries are skipped.
func (p *Payload) Roles() []string {
	return Strings(p.claims[ClaimRoles])
}

// UserIdentity returns nil for anonymous launches (no sub claim).
func (p *Payload) UserIdentity() *UserIdentity {
	sub := stringClaim(p.claims, "sub")
	if sub == "" {
		return nil
	}
	return &UserIdentity{
		Identifier: sub,
		Name:       stringClaim(p.claims, "name"),
		Email:      stringClaim(p.claims, "email"),
		GivenName:  stringClaim(p.claims, "given_name"),
		FamilyName: stringClaim(p.claims, "family_name"),
		Locale:     stringClaim(p.claims, "locale"),
	}
}

func (p *Payload) LaunchPresentation() *LaunchPresentation {
	var lp LaunchPresentation
	if !p.decodeClaim(ClaimLaunchPresentation, &lp) {
		return nil
	}
	return &lp
}

func (p *Payload) ResourceLink() *ResourceLink {
	var rl ResourceLink
	if !p.decodeClaim(ClaimResourceLink, &rl) {
		return nil
	}
	return &rl
}

func (p *Payload) Context() *Context {
	var c Context
	if !p.decodeClaim(ClaimContext, &c) {
		return nil
	}
	return &c
}

func (p *Payload) Custom() map[string]any {
	m, _ := p.claims[ClaimCustom].(map[string]any)
	return m
}

// Claim returns a raw claim value, or nil when absent.
func (p *Payload) Claim(name string) any { return p.claims[name] }

// Claims unmarshals all claims into ref.
func (p *Payload) Claims(ref any) error {
	b, err := json.Marshal(p.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}

func (p *Payload) decodeClaim(name string, ref any) bool {
	v, ok := p.claims[name]
	if !ok || v == nil {
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, ref) == nil
}

func stringClaim(claims map[string]any, name string) string {
	switch v := claims[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Strings converts a decoded JSON array (or a single string) to a string slice.
func Strings(v any) []string {
	switch vv := v.(type) {
	case []string:
		return append([]string(nil), vv...)
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vv}
	}
	return []string{}
}
