package jwtauth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

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

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerify_HappyPath(t *testing.T) {
	pk := genRSA(t)
	now := time.Now()
	tok := signToken(t, jwt.SigningMethodRS256, pk, jwt.MapClaims{
		"iss": "https://platform.example",
		"aud": []string{"client-1"},
		"exp": now.Add(time.Hour).Unix(),
	})

	claims, err := Verify(tok, RestrictAlgs([]string{"RS256"}, StaticKey(&pk.PublicKey)), VerifyOptions{
		Algorithms: []string{"RS256"},
		Audience:   "client-1",
		Issuer:     "https://platform.example",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if StringClaim(claims, "iss") != "https://platform.example" {
		t.Fatalf("unexpected iss: %v", claims["iss"])
	}
}

func TestVerify_Expired(t *testing.T) {
	pk := genRSA(t)
	tok := signToken(t, jwt.SigningMethodRS256, pk, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err := Verify(tok, StaticKey(&pk.PublicKey), VerifyOptions{Algorithms: []string{"RS256"}})
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestVerify_MissingExp(t *testing.T) {
	pk := genRSA(t)
	tok := signToken(t, jwt.SigningMethodRS256, pk, jwt.MapClaims{"sub": "x"})
	if _, err := Verify(tok, StaticKey(&pk.PublicKey), VerifyOptions{Algorithms: []string{"RS256"}}); err == nil {
		t.Fatalf("expected error for missing exp")
	}
}

func TestRestrictAlgs_RejectsOtherAlgorithms(t *testing.T) {
	pk := genRSA(t)
	tok := signToken(t, jwt.SigningMethodRS384, pk, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	kf := RestrictAlgs([]string{"RS256"}, StaticKey(&pk.PublicKey))
	if _, err := Verify(tok, kf, VerifyOptions{Algorithms: []string{"RS256", "RS384"}}); err == nil {
		t.Fatalf("expected disallowed alg error")
	}
}

func TestParseUnverified(t *testing.T) {
	// Never verified: claims are readable regardless of the signing key.
	tok := signToken(t, jwt.SigningMethodRS256, genRSA(t), jwt.MapClaims{"sub": "user-1"})

	claims, err := ParseUnverified(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if StringClaim(claims, "sub") != "user-1" {
		t.Fatalf("unexpected sub: %v", claims["sub"])
	}

	if _, err := ParseUnverified(""); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("want ErrEmptyToken, got %v", err)
	}
	if _, err := ParseUnverified("invalid"); err == nil {
		t.Fatalf("expected malformed error")
	}
}

func TestAudienceHelpers(t *testing.T) {
	tests := []struct {
		name  string
		aud   any
		want  string
		first string
		ok    bool
	}{
		{name: "string", aud: "a", want: "a", first: "a", ok: true},
		{name: "any slice", aud: []any{"x", "a"}, want: "a", first: "x", ok: true},
		{name: "string slice", aud: []string{"b"}, want: "a", first: "b", ok: false},
		{name: "nil", aud: nil, want: "a", first: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AudContains(tt.aud, tt.want); got != tt.ok {
				t.Errorf("AudContains() = %v, want %v", got, tt.ok)
			}
			if got := FirstAudience(tt.aud); got != tt.first {
				t.Errorf("FirstAudience() = %q, want %q", got, tt.first)
			}
		})
	}
}
