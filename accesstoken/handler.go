package accesstoken

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/elnormous/contenttype"

	"github.com/ggoodman/lti1p3-go/internal/jwtauth"
	"github.com/ggoodman/lti1p3-go/nonce"
	"github.com/ggoodman/lti1p3-go/registration"
)

// OAuth2 parameter values for the client_credentials grant with a JWT
// client assertion.
const (
	GrantTypeClientCredentials = "client_credentials"
	ClientAssertionTypeJWT     = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	// KeyChainPathValue names the path wildcard holding the signing key
	// chain identifier, e.g. "POST /auth/{keyChainIdentifier}/token".
	KeyChainPathValue = "keyChainIdentifier"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// Handler serves the token endpoint.
type Handler struct {
	repo      *registration.Repository
	keyChains *registration.KeyChainRepository
	keyring   *registration.Keyring
	issuer    *Issuer
	scopes    []string
	nonces    nonce.Store
	leeway    time.Duration
	log       *slog.Logger
}

type HandlerOption func(*Handler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// WithLeeway sets the clock skew tolerated on client assertions.
func WithLeeway(d time.Duration) HandlerOption {
	return func(h *Handler) { h.leeway = d }
}

// NewHandler builds the token endpoint. scopes lists every scope that may be
// granted; nonces records client assertion ids to block replays.
func NewHandler(repo *registration.Repository, keyChains *registration.KeyChainRepository, keyring *registration.Keyring, issuer *Issuer, scopes []string, nonces nonce.Store, opts ...HandlerOption) *Handler {
	h := &Handler{
		repo:      repo,
		keyChains: keyChains,
		keyring:   keyring,
		issuer:    issuer,
		scopes:    append([]string(nil), scopes...),
		nonces:    nonces,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	kcID := r.PathValue(KeyChainPathValue)
	kc := h.keyChains.Find(kcID)
	if kc == nil {
		h.log.InfoContext(ctx, "token.keychain.miss", slog.String("key_chain", kcID))
		writeOAuthError(w, http.StatusNotFound, "invalid_request", fmt.Sprintf("key chain %s not found", kcID))
		return
	}

	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	switch gt := r.PostForm.Get("grant_type"); gt {
	case "":
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "grant_type required")
		return
	case GrantTypeClientCredentials:
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", fmt.Sprintf("unsupported grant type %s", gt))
		return
	}
	if r.PostForm.Get("client_assertion_type") != ClientAssertionTypeJWT {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "client_assertion_type must be "+ClientAssertionTypeJWT)
		return
	}

	reg, err := h.authenticateClient(r, r.PostForm.Get("client_assertion"), kc)
	if err != nil {
		h.log.InfoContext(ctx, "token.client.fail", slog.String("err", err.Error()))
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", err.Error())
		return
	}

	requested := strings.Fields(r.PostForm.Get("scope"))
	for _, s := range requested {
		if !slices.Contains(h.scopes, s) {
			h.log.InfoContext(ctx, "token.scope.fail", slog.String("scope", s))
			writeOAuthError(w, http.StatusBadRequest, "invalid_scope", fmt.Sprintf("scope %s is not supported", s))
			return
		}
	}

	tok, err := h.issuer.Issue(kc, reg, requested)
	if err != nil {
		h.log.ErrorContext(ctx, "token.issue.fail", slog.String("err", err.Error()))
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "unable to issue token")
		return
	}
	h.log.InfoContext(ctx, "token.issue.ok", slog.String("registration", reg.Identifier), slog.String("scope", strings.Join(requested, " ")))

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   tok.ExpiresIn,
		Scope:       strings.Join(tok.Scopes, " "),
	})
}

// authenticateClient verifies the client assertion JWT signed by the tool.
func (h *Handler) authenticateClient(r *http.Request, assertion string, kc *registration.KeyChain) (*registration.Registration, error) {
	unverified, err := jwtauth.ParseUnverified(assertion)
	if err != nil {
		return nil, fmt.Errorf("malformed client assertion: %w", err)
	}
	clientID := jwtauth.StringClaim(unverified, "sub")
	reg := h.repo.FindByClientID(clientID)
	if reg == nil {
		return nil, fmt.Errorf("no registration found for client id %s", clientID)
	}
	if reg.PlatformKeyChain == nil || reg.PlatformKeyChain.Identifier != kc.Identifier {
		return nil, fmt.Errorf("registration %s does not sign with key chain %s", reg.Identifier, kc.Identifier)
	}

	claims, err := jwtauth.Verify(assertion, h.keyring.ToolKeyfunc(reg), jwtauth.VerifyOptions{
		Algorithms: h.keyring.ToolAlgorithms(reg),
		Leeway:     h.leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid client assertion: %w", err)
	}
	if iss := jwtauth.StringClaim(claims, "iss"); iss != clientID {
		return nil, fmt.Errorf("client assertion issuer %s does not match subject", iss)
	}
	aud := claims["aud"]
	tokenURL := reg.Platform.OAuth2AccessTokenURL
	if !jwtauth.AudContains(aud, reg.Platform.Audience) && (tokenURL == "" || !jwtauth.AudContains(aud, tokenURL)) {
		return nil, fmt.Errorf("client assertion audience is invalid")
	}

	jti := jwtauth.StringClaim(claims, "jti")
	if jti == "" {
		return nil, fmt.Errorf("client assertion jti required")
	}
	var ttl time.Duration
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = time.Until(exp.Time) + h.leeway
	}
	fresh, err := h.nonces.Consume(r.Context(), "assertion:"+jti, ttl)
	if err != nil {
		return nil, fmt.Errorf("client assertion replay check: %w", err)
	}
	if !fresh {
		return nil, fmt.Errorf("client assertion already used")
	}
	return reg, nil
}

func writeOAuthError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "error_description": desc})
}
