// Package jwtauth holds the golang-jwt helpers shared by the validation
// engine and the access token endpoint.
package jwtauth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrEmptyToken is returned when a token string is empty.
var ErrEmptyToken = errors.New("empty token")

// RestrictAlgs wraps kf so that tokens signed with an algorithm outside algs
// are rejected before any key lookup. "none" is never allowed.
func RestrictAlgs(algs []string, kf jwt.Keyfunc) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		alg := t.Method.Alg()
		if alg == "none" || !slices.Contains(algs, alg) {
			return nil, fmt.Errorf("disallowed alg: %s", alg)
		}
		return kf(t)
	}
}

// StaticKey returns a keyfunc that always yields key.
func StaticKey(key any) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) { return key, nil }
}

// ParseUnverified decodes a compact JWT without checking its signature. The
// returned claims must not be trusted.
func ParseUnverified(tok string) (jwt.MapClaims, error) {
	if tok == "" {
		return nil, ErrEmptyToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyOptions controls Verify.
type VerifyOptions struct {
	Algorithms []string
	Audience   string
	Issuer     string
	Leeway     time.Duration
	Now        func() time.Time
}

// Verify parses tok, checks the signature with kf and validates exp (required),
// nbf, iat and, when set, aud and iss.
func Verify(tok string, kf jwt.Keyfunc, opts VerifyOptions) (jwt.MapClaims, error) {
	if tok == "" {
		return nil, ErrEmptyToken
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(opts.Algorithms),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(opts.Leeway),
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(opts.Now))
	}
	parsed, err := jwt.NewParser(parserOpts...).Parse(tok, kf)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

// AudContains reports whether the aud claim (string or array) contains want.
func AudContains(aud any, want string) bool {
	switch v := aud.(type) {
	case string:
		return v == want
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s == want {
				return true
			}
		}
	case []string:
		return slices.Contains(v, want)
	}
	return false
}

// FirstAudience returns the first audience entry, or "".
func FirstAudience(aud any) string {
	switch v := aud.(type) {
	case string:
		return v
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				return s
			}
		}
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// StringClaim returns a string claim, or "" when absent or not a string.
func StringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}
