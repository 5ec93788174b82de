package registration

import (
	"crypto"
	"errors"
	"fmt"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultAlgorithm is used when a key chain does not name one.
const DefaultAlgorithm = "RS256"

// KeyChain is a named key pair. The private key is only present for key
// chains owned by this deployment.
type KeyChain struct {
	Identifier string
	KeySetName string
	Algorithm  string
	PublicKey  crypto.PublicKey
	PrivateKey crypto.PrivateKey
}

// NewKeyChainFromPEM parses PEM encoded keys for the given algorithm family
// (RS*, PS*, ES*, EdDSA). privatePEM may be empty.
func NewKeyChainFromPEM(identifier, keySetName string, publicPEM, privatePEM []byte, alg string) (*KeyChain, error) {
	if identifier == "" {
		return nil, errors.New("key chain: identifier required")
	}
	if alg == "" {
		alg = DefaultAlgorithm
	}
	if jwt.GetSigningMethod(alg) == nil {
		return nil, fmt.Errorf("key chain %s: unsupported algorithm %q", identifier, alg)
	}
	kc := &KeyChain{Identifier: identifier, KeySetName: keySetName, Algorithm: alg}

	var err error
	switch {
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"):
		kc.PublicKey, err = jwt.ParseRSAPublicKeyFromPEM(publicPEM)
		if err == nil && len(privatePEM) > 0 {
			kc.PrivateKey, err = jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
		}
	case strings.HasPrefix(alg, "ES"):
		kc.PublicKey, err = jwt.ParseECPublicKeyFromPEM(publicPEM)
		if err == nil && len(privatePEM) > 0 {
			kc.PrivateKey, err = jwt.ParseECPrivateKeyFromPEM(privatePEM)
		}
	case alg == "EdDSA":
		kc.PublicKey, err = jwt.ParseEdPublicKeyFromPEM(publicPEM)
		if err == nil && len(privatePEM) > 0 {
			kc.PrivateKey, err = jwt.ParseEdPrivateKeyFromPEM(privatePEM)
		}
	default:
		err = fmt.Errorf("unsupported algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("key chain %s: %w", identifier, err)
	}
	return kc, nil
}

// SigningMethod returns the golang-jwt signing method for the key chain.
func (k *KeyChain) SigningMethod() jwt.SigningMethod {
	alg := k.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	return jwt.GetSigningMethod(alg)
}

func (k *KeyChain) CanSign() bool { return k.PrivateKey != nil }

// JWK returns the public half as a JSON Web Key, kid = Identifier.
func (k *KeyChain) JWK() jose.JSONWebKey {
	alg := k.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	return jose.JSONWebKey{Key: k.PublicKey, KeyID: k.Identifier, Algorithm: alg, Use: "sig"}
}

// KeyChainRepository indexes key chains by identifier.
type KeyChainRepository struct {
	byID  map[string]*KeyChain
	order []*KeyChain
}

func NewKeyChainRepository(chains ...*KeyChain) (*KeyChainRepository, error) {
	repo := &KeyChainRepository{byID: make(map[string]*KeyChain, len(chains))}
	for _, kc := range chains {
		if kc == nil {
			continue
		}
		if _, dup := repo.byID[kc.Identifier]; dup {
			return nil, fmt.Errorf("key chain %s: duplicate identifier", kc.Identifier)
		}
		repo.byID[kc.Identifier] = kc
		repo.order = append(repo.order, kc)
	}
	return repo, nil
}

func (r *KeyChainRepository) Find(identifier string) *KeyChain {
	return r.byID[identifier]
}

// FindByKeySetName returns the key chains published under one JWKS document.
func (r *KeyChainRepository) FindByKeySetName(name string) []*KeyChain {
	var out []*KeyChain
	for _, kc := range r.order {
		if kc.KeySetName == name {
			out = append(out, kc)
		}
	}
	return out
}
