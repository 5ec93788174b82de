package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/ggoodman/lti1p3-go/internal/carrier"
	"github.com/ggoodman/lti1p3-go/internal/jwtauth"
	"github.com/ggoodman/lti1p3-go/message"
	"github.com/ggoodman/lti1p3-go/nonce"
	"github.com/ggoodman/lti1p3-go/nonce/memory"
	"github.com/ggoodman/lti1p3-go/registration"
)

// ScopesClaim carries the granted scopes in access tokens.
const ScopesClaim = "scopes"

// Validator is the reference engine. It is safe for concurrent use.
type Validator struct {
	repo    *registration.Repository
	keyring *registration.Keyring
	nonces  nonce.Store
	leeway  time.Duration
	now     func() time.Time
}

var (
	_ ToolLaunchValidator     = (*Validator)(nil)
	_ PlatformLaunchValidator = (*Validator)(nil)
	_ AccessTokenValidator    = (*Validator)(nil)
)

// Option configures a Validator.
type Option func(*Validator)

// WithNonceStore replaces the default in-memory nonce store.
func WithNonceStore(s nonce.Store) Option {
	return func(v *Validator) { v.nonces = s }
}

// WithLeeway sets the clock skew tolerated on exp/nbf/iat.
func WithLeeway(d time.Duration) Option {
	return func(v *Validator) { v.leeway = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// NewValidator builds a Validator over the given registrations and keys.
func NewValidator(repo *registration.Repository, keyring *registration.Keyring, opts ...Option) *Validator {
	v := &Validator{repo: repo, keyring: keyring, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	if v.nonces == nil {
		v.nonces = memory.New(memory.WithClock(v.now))
	}
	return v
}

// ValidatePlatformOriginatingLaunch validates the id_token carried by r.
func (v *Validator) ValidatePlatformOriginatingLaunch(ctx context.Context, r *http.Request) (*Result, error) {
	tok := carrier.Param(r, carrier.IDTokenParam)
	unverified, err := jwtauth.ParseUnverified(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	res := &Result{Token: tok}
	iss := jwtauth.StringClaim(unverified, "iss")
	clientID := jwtauth.StringClaim(unverified, "azp")
	if clientID == "" {
		clientID = jwtauth.FirstAudience(unverified["aud"])
	}
	reg := v.repo.FindByPlatformIssuer(iss, clientID)
	if reg == nil {
		res.Failure = fmt.Errorf("no registration found for issuer %s and client id %s", iss, clientID)
		return res, nil
	}
	res.Registration = reg
	res.Successes = append(res.Successes, "Registration found")

	keySet, err := v.keyring.PlatformKeySet(reg)
	if err != nil {
		return nil, err
	}
	verifier := oidc.NewVerifier(reg.Platform.Audience, keySet, &oidc.Config{
		ClientID:             reg.ClientID,
		SupportedSigningAlgs: v.keyring.PlatformAlgorithms(reg),
		Now:                  v.shiftedNow,
	})
	idt, err := verifier.Verify(ctx, tok)
	if err != nil {
		res.Failure = &failure{msg: "ID token validation failure", err: err}
		return res, nil
	}
	res.Successes = append(res.Successes, "ID token validation success")

	var claims map[string]any
	if err := idt.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	payload := message.NewPayload(tok, claims)
	res.Payload = payload

	if err := checkMessage(payload, reg); err != nil {
		res.Failure = err
		return res, nil
	}
	if !payload.HasRoles() {
		res.Failure = errors.New("ID token roles claim missing")
		return res, nil
	}
	if err := v.consumeNonce(ctx, payload.Nonce(), idt.Expiry); err != nil {
		res.Failure = err
		return res, nil
	}
	res.Successes = append(res.Successes, "ID token nonce is valid")
	return res, nil
}

// ValidateToolOriginatingLaunch validates the JWT parameter carried by r.
func (v *Validator) ValidateToolOriginatingLaunch(ctx context.Context, r *http.Request) (*Result, error) {
	tok := carrier.Param(r, carrier.JWTParam)
	unverified, err := jwtauth.ParseUnverified(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	res := &Result{Token: tok}
	iss := jwtauth.StringClaim(unverified, "iss")
	reg := v.repo.FindByToolIssuer(iss, "")
	if reg == nil {
		// Tools commonly sign with their client id as issuer.
		reg = v.repo.FindByClientID(iss)
	}
	if reg == nil {
		res.Failure = fmt.Errorf("no registration found for issuer %s", iss)
		return res, nil
	}
	res.Registration = reg
	res.Successes = append(res.Successes, "Registration found")

	claims, err := jwtauth.Verify(tok, v.keyring.ToolKeyfunc(reg), jwtauth.VerifyOptions{
		Algorithms: v.keyring.ToolAlgorithms(reg),
		Audience:   reg.Platform.Audience,
		Leeway:     v.leeway,
		Now:        v.now,
	})
	if err != nil {
		res.Failure = &failure{msg: "JWT validation failure", err: err}
		return res, nil
	}
	res.Successes = append(res.Successes, "JWT validation success")

	payload := message.NewPayload(tok, claims)
	res.Payload = payload
	if err := checkMessage(payload, reg); err != nil {
		res.Failure = err
		return res, nil
	}

	var exp time.Time
	if e, err := claims.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}
	if err := v.consumeNonce(ctx, payload.Nonce(), exp); err != nil {
		res.Failure = err
		return res, nil
	}
	res.Successes = append(res.Successes, "JWT nonce is valid")
	return res, nil
}

// Validate validates the bearer access token carried by r.
func (v *Validator) Validate(ctx context.Context, r *http.Request, allowedScopes []string) (*Result, error) {
	tok, ok := carrier.BearerToken(carrier.Authorization(r))
	if !ok {
		return nil, fmt.Errorf("%w: missing bearer access token", ErrMalformedToken)
	}
	unverified, err := jwtauth.ParseUnverified(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	res := &Result{Token: tok}
	clientID := jwtauth.FirstAudience(unverified["aud"])
	reg := v.repo.FindByClientID(clientID)
	if reg == nil {
		res.Failure = fmt.Errorf("no registration found for client id %s", clientID)
		return res, nil
	}
	res.Registration = reg

	claims, err := jwtauth.Verify(tok, v.keyring.PlatformKeyfunc(reg), jwtauth.VerifyOptions{
		Algorithms: v.keyring.PlatformAlgorithms(reg),
		Audience:   reg.ClientID,
		Issuer:     reg.Platform.Audience,
		Leeway:     v.leeway,
		Now:        v.now,
	})
	if err != nil {
		res.Failure = &failure{msg: "JWT access token validation failure", err: err}
		return res, nil
	}
	res.Successes = append(res.Successes, "JWT access token is valid")

	res.Scopes = message.Strings(claims[ScopesClaim])
	if len(allowedScopes) > 0 && !intersects(res.Scopes, allowedScopes) {
		res.Failure = errors.New("JWT access token scopes are invalid")
		return res, nil
	}
	res.Successes = append(res.Successes, "JWT access token scopes are valid")
	return res, nil
}

func checkMessage(p *message.Payload, reg *registration.Registration) error {
	if p.Version() != message.Version {
		return fmt.Errorf("invalid LTI version %q", p.Version())
	}
	if p.MessageType() == "" {
		return errors.New("LTI message type claim missing")
	}
	if !reg.HasDeploymentID(p.DeploymentID()) {
		return fmt.Errorf("invalid LTI deployment id %q", p.DeploymentID())
	}
	return nil
}

func (v *Validator) consumeNonce(ctx context.Context, value string, exp time.Time) error {
	if value == "" {
		return errors.New("nonce claim missing")
	}
	ttl := nonce.DefaultTTL
	if !exp.IsZero() {
		if d := exp.Sub(v.now()) + v.leeway; d > 0 {
			ttl = d
		}
	}
	fresh, err := v.nonces.Consume(ctx, value, ttl)
	if err != nil {
		return fmt.Errorf("nonce check failed: %w", err)
	}
	if !fresh {
		return errors.New("nonce already used")
	}
	return nil
}

// shiftedNow lets go-oidc, which has no leeway option, tolerate clock skew on
// expiry.
func (v *Validator) shiftedNow() time.Time {
	return v.now().Add(-v.leeway)
}

func intersects(a, b []string) bool {
	for _, s := range a {
		if slices.Contains(b, s) {
			return true
		}
	}
	return false
}

// failure keeps the verifier error reachable through errors.Is/As while only
// exposing msg, since failure messages end up in user facing responses.
type failure struct {
	msg string
	err error
}

func (f *failure) Error() string { return f.msg }
func (f *failure) Unwrap() error { return f.err }
