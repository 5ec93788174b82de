package registration

import (
	"context"
	"crypto"
	"fmt"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ggoodman/lti1p3-go/internal/jwtauth"
)

// Keyring resolves verification keys for registrations. Remote JWKS sources
// are set up once in NewKeyring and auto-refresh in the background; the maps
// are never written after construction.
type Keyring struct {
	toolRemote     map[string]keyfunc.Keyfunc
	platformRemote map[string]*oidc.RemoteKeySet
}

// NewKeyring prepares remote key sources for every registration that declares
// a JWKS URL. The context bounds the lifetime of the background refreshers.
func NewKeyring(ctx context.Context, repo *Repository) (*Keyring, error) {
	k := &Keyring{
		toolRemote:     map[string]keyfunc.Keyfunc{},
		platformRemote: map[string]*oidc.RemoteKeySet{},
	}
	for _, reg := range repo.FindAll() {
		if reg.ToolJWKSURL != "" && reg.ToolKeyChain == nil {
			kf, err := keyfunc.NewDefaultCtx(ctx, []string{reg.ToolJWKSURL})
			if err != nil {
				return nil, fmt.Errorf("registration %s: tool jwks init failed: %w", reg.Identifier, err)
			}
			k.toolRemote[reg.Identifier] = kf
		}
		if reg.PlatformJWKSURL != "" && reg.PlatformKeyChain == nil {
			k.platformRemote[reg.Identifier] = oidc.NewRemoteKeySet(ctx, reg.PlatformJWKSURL)
		}
	}
	return k, nil
}

// ToolAlgorithms lists the JWS algorithms accepted for tool-signed tokens.
func (k *Keyring) ToolAlgorithms(reg *Registration) []string {
	return algorithms(reg.ToolKeyChain)
}

// PlatformAlgorithms lists the JWS algorithms accepted for platform-signed tokens.
func (k *Keyring) PlatformAlgorithms(reg *Registration) []string {
	return algorithms(reg.PlatformKeyChain)
}

// ToolKeyfunc verifies tokens signed by the registration's tool.
func (k *Keyring) ToolKeyfunc(reg *Registration) jwt.Keyfunc {
	algs := k.ToolAlgorithms(reg)
	if reg.ToolKeyChain != nil {
		return jwtauth.RestrictAlgs(algs, jwtauth.StaticKey(reg.ToolKeyChain.PublicKey))
	}
	if kf, ok := k.toolRemote[reg.Identifier]; ok {
		return jwtauth.RestrictAlgs(algs, kf.Keyfunc)
	}
	return missingKey("tool", reg)
}

// PlatformKeyfunc verifies tokens signed with the local platform key chain,
// which is what access tokens issued by this deployment use.
func (k *Keyring) PlatformKeyfunc(reg *Registration) jwt.Keyfunc {
	if reg.PlatformKeyChain == nil {
		return missingKey("platform", reg)
	}
	return jwtauth.RestrictAlgs(k.PlatformAlgorithms(reg), jwtauth.StaticKey(reg.PlatformKeyChain.PublicKey))
}

// PlatformKeySet returns the OIDC key set used to verify platform id tokens.
func (k *Keyring) PlatformKeySet(reg *Registration) (oidc.KeySet, error) {
	if reg.PlatformKeyChain != nil {
		return &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{reg.PlatformKeyChain.PublicKey}}, nil
	}
	if ks, ok := k.platformRemote[reg.Identifier]; ok {
		return ks, nil
	}
	return nil, fmt.Errorf("registration %s: no platform key configured", reg.Identifier)
}

func algorithms(kc *KeyChain) []string {
	if kc == nil || kc.Algorithm == "" {
		return []string{DefaultAlgorithm}
	}
	return []string{kc.Algorithm}
}

func missingKey(side string, reg *Registration) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) {
		return nil, fmt.Errorf("registration %s: no %s key configured", reg.Identifier, side)
	}
}
