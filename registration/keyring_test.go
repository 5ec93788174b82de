package registration

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

func genRSA(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	return pk
}

func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{Key: pub, KeyID: kid, Algorithm: "RS256", Use: "sig"}}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signKID(t *testing.T, pk *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestKeyring_Static(t *testing.T) {
	platformKey, toolKey := genRSA(t), genRSA(t)
	reg := testRegistration("a", "client", "http://platform.com", "http://tool.com")
	reg.PlatformKeyChain = &KeyChain{Identifier: "p", PublicKey: &platformKey.PublicKey}
	reg.ToolKeyChain = &KeyChain{Identifier: "t", Algorithm: "RS256", PublicKey: &toolKey.PublicKey}
	repo, err := NewRepository(reg)
	if err != nil {
		t.Fatal(err)
	}
	kr, err := NewKeyring(context.Background(), repo)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}

	claims := jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}
	if _, err := jwt.Parse(signKID(t, toolKey, "t", claims), kr.ToolKeyfunc(reg)); err != nil {
		t.Fatalf("tool keyfunc: %v", err)
	}
	if _, err := jwt.Parse(signKID(t, platformKey, "p", claims), kr.ToolKeyfunc(reg)); err == nil {
		t.Fatalf("tool keyfunc accepted a platform signature")
	}
	if _, err := jwt.Parse(signKID(t, platformKey, "p", claims), kr.PlatformKeyfunc(reg)); err != nil {
		t.Fatalf("platform keyfunc: %v", err)
	}

	ks, err := kr.PlatformKeySet(reg)
	if err != nil {
		t.Fatalf("PlatformKeySet: %v", err)
	}
	if _, err := ks.VerifySignature(context.Background(), signKID(t, platformKey, "p", claims)); err != nil {
		t.Fatalf("static key set: %v", err)
	}
}

func TestKeyring_Remote(t *testing.T) {
	platformKey, toolKey := genRSA(t), genRSA(t)
	reg := testRegistration("a", "client", "http://platform.com", "http://tool.com")
	reg.PlatformJWKSURL = jwksServer(t, "p", &platformKey.PublicKey).URL
	reg.ToolJWKSURL = jwksServer(t, "t", &toolKey.PublicKey).URL
	repo, err := NewRepository(reg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	kr, err := NewKeyring(ctx, repo)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}

	claims := jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}
	if _, err := jwt.Parse(signKID(t, toolKey, "t", claims), kr.ToolKeyfunc(reg)); err != nil {
		t.Fatalf("remote tool keyfunc: %v", err)
	}

	ks, err := kr.PlatformKeySet(reg)
	if err != nil {
		t.Fatalf("PlatformKeySet: %v", err)
	}
	if _, err := ks.VerifySignature(ctx, signKID(t, platformKey, "p", claims)); err != nil {
		t.Fatalf("remote key set: %v", err)
	}
	if _, err := ks.VerifySignature(ctx, signKID(t, toolKey, "p", claims)); err == nil {
		t.Fatalf("remote key set accepted a foreign signature")
	}
}

func TestKeyring_MissingKeys(t *testing.T) {
	reg := testRegistration("a", "client", "http://platform.com", "http://tool.com")
	repo, err := NewRepository(reg)
	if err != nil {
		t.Fatal(err)
	}
	kr, err := NewKeyring(context.Background(), repo)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	if _, err := kr.PlatformKeySet(reg); err == nil {
		t.Fatalf("expected missing platform key error")
	}
	tok := signKID(t, genRSA(t), "x", jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()})
	if _, err := jwt.Parse(tok, kr.ToolKeyfunc(reg)); err == nil {
		t.Fatalf("expected missing tool key error")
	}
}
