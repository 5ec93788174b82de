package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/lti1p3-go/auth"
)

func writeKeys(t *testing.T, dir string) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&pk.PublicKey)
	if err != nil {
		t.Fatalf("marshal public: %v", err)
	}
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(pk)})
	if err := os.WriteFile(filepath.Join(dir, "public.key"), pub, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "private.key"), priv, 0o600); err != nil {
		t.Fatal(err)
	}
}

const validYAML = `
scopes:
  - allowed-scope
key_chains:
  kid1:
    key_set_name: platformSet
    public_key: file://public.key
    private_key: file://private.key
  kid2:
    key_set_name: toolSet
    public_key: public.key
platforms:
  testPlatform:
    name: Test Platform
    audience: http://platform.com
    oauth2_access_token_url: http://platform.com/token
tools:
  testTool:
    name: Test Tool
    audience: http://tool.com
    oidc_initiation_url: http://tool.com/oidc-init
registrations:
  second:
    client_id: other_client
    platform: testPlatform
    tool: testTool
    platform_key_chain: kid1
    tool_key_chain: kid2
  testRegistration:
    client_id: client_id
    platform: testPlatform
    tool: testTool
    deployment_ids: [deploymentId1]
    platform_key_chain: kid1
    tool_key_chain: kid2
    order: 1
firewalls:
  - name: tool
    kind: tool_message
    path_prefix: /tool
    allowed_message_types: [LtiResourceLinkRequest]
  - name: service
    kind: service
    path_prefix: /service
    allowed_scopes: [allowed-scope]
`

func loadFile(t *testing.T, doc string) *File {
	t.Helper()
	dir := t.TempDir()
	writeKeys(t, dir)
	path := filepath.Join(dir, "lti1p3.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f
}

func TestBuild(t *testing.T) {
	f := loadFile(t, validYAML)

	kcs, err := f.BuildKeyChains()
	if err != nil {
		t.Fatalf("BuildKeyChains: %v", err)
	}
	if kc := kcs.Find("kid1"); kc == nil || !kc.CanSign() {
		t.Fatalf("kid1 should carry a private key")
	}
	if kc := kcs.Find("kid2"); kc == nil || kc.CanSign() {
		t.Fatalf("kid2 should be public only")
	}

	repo, err := f.BuildRegistrations(kcs)
	if err != nil {
		t.Fatalf("BuildRegistrations: %v", err)
	}
	reg := repo.Find("testRegistration")
	if reg == nil || reg.ClientID != "client_id" || reg.Platform.Identifier != "testPlatform" || reg.Tool.Name != "Test Tool" {
		t.Fatalf("unexpected registration: %+v", reg)
	}
	if reg.Platform.OAuth2AccessTokenURL != "http://platform.com/token" {
		t.Fatalf("platform urls not mapped: %+v", reg.Platform)
	}
	// Explicit order wins over declaration order.
	if got := repo.FindByPlatformIssuer("http://platform.com", ""); got == nil || got.Identifier != "testRegistration" {
		t.Fatalf("FindByPlatformIssuer = %+v", got)
	}
	if all := repo.FindAll(); len(all) != 2 || all[1].Identifier != "second" {
		t.Fatalf("unexpected order")
	}

	zones, err := f.BuildZones()
	if err != nil {
		t.Fatalf("BuildZones: %v", err)
	}
	if len(zones) != 2 || zones[0].Kind != auth.KindToolMessage || zones[1].AllowedScopes[0] != "allowed-scope" {
		t.Fatalf("unexpected zones: %+v", zones)
	}
}

func TestBuild_UndefinedReferences(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr string
	}{
		{name: "platform", from: "    platform: testPlatform\n    tool: testTool\n    deployment_ids", to: "    platform: invalid\n    tool: testTool\n    deployment_ids", wantErr: "Platform invalid is not defined, possible values: testPlatform"},
		{name: "tool", from: "    tool: testTool\n    deployment_ids", to: "    tool: invalid\n    deployment_ids", wantErr: "Tool invalid is not defined, possible values: testTool"},
		{name: "platform key chain", from: "    platform_key_chain: kid1\n    tool_key_chain: kid2\n    order", to: "    platform_key_chain: invalid\n    tool_key_chain: kid2\n    order", wantErr: "Platform key chain invalid is not defined, possible values: kid1, kid2"},
		{name: "tool key chain", from: "    tool_key_chain: kid2\n    order", to: "    tool_key_chain: invalid\n    order", wantErr: "Tool key chain invalid is not defined, possible values: kid1, kid2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(validYAML, tt.from, tt.to, 1)
			if doc == validYAML {
				t.Fatalf("fixture replacement did not apply")
			}
			f := loadFile(t, doc)
			kcs, err := f.BuildKeyChains()
			if err != nil {
				t.Fatalf("BuildKeyChains: %v", err)
			}
			_, err = f.BuildRegistrations(kcs)
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildZones_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown kind", doc: "firewalls:\n  - {name: x, kind: other, path_prefix: /x}\n"},
		{name: "relative prefix", doc: "firewalls:\n  - {name: x, kind: service, path_prefix: x}\n"},
		{name: "undeclared scope", doc: "scopes: [a]\nfirewalls:\n  - {name: x, kind: service, path_prefix: /x, allowed_scopes: [b]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.doc))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if _, err := f.BuildZones(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("scopes: [a]\nbogus: y\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Parse([]byte("platforms: [a, b]\n")); err == nil {
		t.Fatalf("expected mapping error")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("LTI_LISTEN_ADDR", ":9090")
	t.Setenv("LTI_CLOCK_LEEWAY", "5s")
	t.Setenv("LTI_LOG_LEVEL", "debug")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if env.ListenAddr != ":9090" || env.Leeway != 5*time.Second {
		t.Fatalf("unexpected env: %+v", env)
	}
	if env.ConfigFile != "lti1p3.yaml" || env.AccessTokenTTL != time.Hour {
		t.Fatalf("defaults not applied: %+v", env)
	}
	lvl, err := env.SlogLevel()
	if err != nil || lvl != slog.LevelDebug {
		t.Fatalf("SlogLevel = %v, %v", lvl, err)
	}
	if _, err := (Env{LogLevel: "loud"}).SlogLevel(); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
