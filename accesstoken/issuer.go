// Package accesstoken issues LTI service access tokens on the platform side
// and serves the OAuth2 client_credentials token endpoint tools call to get
// them.
package accesstoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ggoodman/lti1p3-go/registration"
	"github.com/ggoodman/lti1p3-go/validation"
)

// DefaultTTL is the lifetime of issued tokens when none is configured.
const DefaultTTL = time.Hour

// ErrCannotSign is returned when the key chain has no private key.
var ErrCannotSign = errors.New("key chain cannot sign")

// Token is an issued access token.
type Token struct {
	AccessToken string
	ExpiresIn   int64
	Scopes      []string
}

// Issuer signs access tokens that validation.Validator accepts.
type Issuer struct {
	ttl time.Duration
	now func() time.Time
}

type IssuerOption func(*Issuer)

func WithTTL(d time.Duration) IssuerOption {
	return func(i *Issuer) { i.ttl = d }
}

func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(opts ...IssuerOption) *Issuer {
	i := &Issuer{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	if i.ttl <= 0 {
		i.ttl = DefaultTTL
	}
	return i
}

// Issue signs a token for reg with kc. The audience is the registration's
// client id and the granted scopes are carried in the scopes claim.
func (i *Issuer) Issue(kc *registration.KeyChain, reg *registration.Registration, scopes []string) (Token, error) {
	if kc == nil || !kc.CanSign() {
		return Token{}, ErrCannotSign
	}
	now := i.now()
	if scopes == nil {
		scopes = []string{}
	}
	tok := jwt.NewWithClaims(kc.SigningMethod(), jwt.MapClaims{
		"iss":                  reg.Platform.Audience,
		"sub":                  reg.ClientID,
		"aud":                  reg.ClientID,
		"jti":                  uuid.NewString(),
		"iat":                  now.Unix(),
		"nbf":                  now.Unix(),
		"exp":                  now.Add(i.ttl).Unix(),
		validation.ScopesClaim: scopes,
	})
	tok.Header["kid"] = kc.Identifier
	signed, err := tok.SignedString(kc.PrivateKey)
	if err != nil {
		return Token{}, fmt.Errorf("sign access token: %w", err)
	}
	return Token{AccessToken: signed, ExpiresIn: int64(i.ttl / time.Second), Scopes: scopes}, nil
}
