package config

import (
	"bytes"
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ggoodman/lti1p3-go/auth"
	"github.com/ggoodman/lti1p3-go/registration"
)

// File is the YAML registration file.
//
//	scopes: [...]
//	key_chains:    {<id>: {key_set_name, public_key, private_key, algorithm}}
//	platforms:     {<id>: {name, audience, oidc_authentication_url, oauth2_access_token_url}}
//	tools:         {<id>: {name, audience, oidc_initiation_url, launch_url, deep_linking_url}}
//	registrations: {<id>: {client_id, platform, tool, deployment_ids, ...}}
//	firewalls:     [{name, kind, path_prefix, allowed_message_types, allowed_scopes, allow_anonymous}]
//
// Mappings keep their declaration order.
type File struct {
	Scopes        []string                    `yaml:"scopes"`
	KeyChains     Ordered[KeyChainConfig]     `yaml:"key_chains"`
	Platforms     Ordered[PlatformConfig]     `yaml:"platforms"`
	Tools         Ordered[ToolConfig]         `yaml:"tools"`
	Registrations Ordered[RegistrationConfig] `yaml:"registrations"`
	Firewalls     []FirewallConfig            `yaml:"firewalls"`

	// dir resolves relative key paths.
	dir string
}

type KeyChainConfig struct {
	KeySetName string `yaml:"key_set_name"`
	// PublicKey and PrivateKey are inline PEM or a path, optionally prefixed
	// with file://.
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
	Algorithm  string `yaml:"algorithm"`
}

type PlatformConfig struct {
	Name                  string `yaml:"name"`
	Audience              string `yaml:"audience"`
	OIDCAuthenticationURL string `yaml:"oidc_authentication_url"`
	OAuth2AccessTokenURL  string `yaml:"oauth2_access_token_url"`
}

type ToolConfig struct {
	Name              string `yaml:"name"`
	Audience          string `yaml:"audience"`
	OIDCInitiationURL string `yaml:"oidc_initiation_url"`
	LaunchURL         string `yaml:"launch_url"`
	DeepLinkingURL    string `yaml:"deep_linking_url"`
}

type RegistrationConfig struct {
	ClientID         string   `yaml:"client_id"`
	Platform         string   `yaml:"platform"`
	Tool             string   `yaml:"tool"`
	DeploymentIDs    []string `yaml:"deployment_ids"`
	PlatformKeyChain string   `yaml:"platform_key_chain"`
	ToolKeyChain     string   `yaml:"tool_key_chain"`
	PlatformJWKSURL  string   `yaml:"platform_jwks_url"`
	ToolJWKSURL      string   `yaml:"tool_jwks_url"`
	// Order overrides declaration order for issuer lookups. Lower first.
	Order *int `yaml:"order"`
}

type FirewallConfig struct {
	Name                string   `yaml:"name"`
	Kind                string   `yaml:"kind"`
	PathPrefix          string   `yaml:"path_prefix"`
	AllowedMessageTypes []string `yaml:"allowed_message_types"`
	AllowedScopes       []string `yaml:"allowed_scopes"`
	AllowAnonymous      bool     `yaml:"allow_anonymous"`
}

// Entry is one key/value pair of an Ordered mapping.
type Entry[T any] struct {
	Key   string
	Value T
}

// Ordered is a YAML mapping decoded in declaration order.
type Ordered[T any] []Entry[T]

func (o *Ordered[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	out := make(Ordered[T], 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var e Entry[T]
		if err := node.Content[i].Decode(&e.Key); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&e.Value); err != nil {
			return fmt.Errorf("%s: %w", e.Key, err)
		}
		out = append(out, e)
	}
	*o = out
	return nil
}

// Keys lists the mapping keys in order.
func (o Ordered[T]) Keys() []string {
	keys := make([]string, len(o))
	for i, e := range o {
		keys[i] = e.Key
	}
	return keys
}

// Get returns the value stored under key.
func (o Ordered[T]) Get(key string) (T, bool) {
	for _, e := range o {
		if e.Key == key {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

// Load reads and strictly decodes the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// Parse decodes a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// BuildKeyChains parses every configured key chain.
func (f *File) BuildKeyChains() (*registration.KeyChainRepository, error) {
	chains := make([]*registration.KeyChain, 0, len(f.KeyChains))
	for _, e := range f.KeyChains {
		pub, err := f.readKey(e.Value.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("key chain %s: public key: %w", e.Key, err)
		}
		var priv []byte
		if e.Value.PrivateKey != "" {
			if priv, err = f.readKey(e.Value.PrivateKey); err != nil {
				return nil, fmt.Errorf("key chain %s: private key: %w", e.Key, err)
			}
		}
		kc, err := registration.NewKeyChainFromPEM(e.Key, e.Value.KeySetName, pub, priv, e.Value.Algorithm)
		if err != nil {
			return nil, err
		}
		chains = append(chains, kc)
	}
	return registration.NewKeyChainRepository(chains...)
}

func (f *File) readKey(ref string) ([]byte, error) {
	if strings.HasPrefix(strings.TrimSpace(ref), "-----BEGIN") {
		return []byte(ref), nil
	}
	path := strings.TrimPrefix(ref, "file://")
	if !filepath.IsAbs(path) && f.dir != "" {
		path = filepath.Join(f.dir, path)
	}
	return os.ReadFile(path)
}

// BuildRegistrations resolves platform, tool and key chain references.
func (f *File) BuildRegistrations(keyChains *registration.KeyChainRepository) (*registration.Repository, error) {
	type ordered struct {
		reg   *registration.Registration
		order *int
	}
	entries := make([]ordered, 0, len(f.Registrations))
	for _, e := range f.Registrations {
		rc := e.Value
		p, ok := f.Platforms.Get(rc.Platform)
		if !ok {
			return nil, fmt.Errorf("Platform %s is not defined, possible values: %s", rc.Platform, strings.Join(f.Platforms.Keys(), ", "))
		}
		t, ok := f.Tools.Get(rc.Tool)
		if !ok {
			return nil, fmt.Errorf("Tool %s is not defined, possible values: %s", rc.Tool, strings.Join(f.Tools.Keys(), ", "))
		}
		reg := &registration.Registration{
			Identifier: e.Key,
			ClientID:   rc.ClientID,
			Platform: registration.Platform{
				Identifier:            rc.Platform,
				Name:                  p.Name,
				Audience:              p.Audience,
				OIDCAuthenticationURL: p.OIDCAuthenticationURL,
				OAuth2AccessTokenURL:  p.OAuth2AccessTokenURL,
			},
			Tool: registration.Tool{
				Identifier:        rc.Tool,
				Name:              t.Name,
				Audience:          t.Audience,
				OIDCInitiationURL: t.OIDCInitiationURL,
				LaunchURL:         t.LaunchURL,
				DeepLinkingURL:    t.DeepLinkingURL,
			},
			DeploymentIDs:   append([]string(nil), rc.DeploymentIDs...),
			PlatformJWKSURL: rc.PlatformJWKSURL,
			ToolJWKSURL:     rc.ToolJWKSURL,
		}
		if rc.PlatformKeyChain != "" {
			if reg.PlatformKeyChain = keyChains.Find(rc.PlatformKeyChain); reg.PlatformKeyChain == nil {
				return nil, fmt.Errorf("Platform key chain %s is not defined, possible values: %s", rc.PlatformKeyChain, strings.Join(f.KeyChains.Keys(), ", "))
			}
		}
		if rc.ToolKeyChain != "" {
			if reg.ToolKeyChain = keyChains.Find(rc.ToolKeyChain); reg.ToolKeyChain == nil {
				return nil, fmt.Errorf("Tool key chain %s is not defined, possible values: %s", rc.ToolKeyChain, strings.Join(f.KeyChains.Keys(), ", "))
			}
		}
		entries = append(entries, ordered{reg: reg, order: rc.Order})
	}

	slices.SortStableFunc(entries, func(a, b ordered) int {
		switch {
		case a.order == nil && b.order == nil:
			return 0
		case a.order == nil:
			return 1
		case b.order == nil:
			return -1
		}
		return cmp.Compare(*a.order, *b.order)
	})
	regs := make([]*registration.Registration, len(entries))
	for i, e := range entries {
		regs[i] = e.reg
	}
	return registration.NewRepository(regs...)
}

// Zone is a configured firewall zone and the kind of authenticator guarding
// it.
type Zone struct {
	auth.Zone
	Kind auth.Kind
}

// BuildZones validates the firewall section.
func (f *File) BuildZones() ([]Zone, error) {
	zones := make([]Zone, 0, len(f.Firewalls))
	for _, fc := range f.Firewalls {
		kind, err := auth.ParseKind(fc.Kind)
		if err != nil {
			return nil, fmt.Errorf("firewall %s: %w", fc.Name, err)
		}
		z := auth.Zone{
			Name:                fc.Name,
			PathPrefix:          fc.PathPrefix,
			AllowedMessageTypes: append([]string(nil), fc.AllowedMessageTypes...),
			AllowedScopes:       append([]string(nil), fc.AllowedScopes...),
			AllowAnonymous:      fc.AllowAnonymous,
		}
		if err := z.Validate(); err != nil {
			return nil, err
		}
		for _, s := range z.AllowedScopes {
			if len(f.Scopes) > 0 && !slices.Contains(f.Scopes, s) {
				return nil, fmt.Errorf("firewall %s: scope %s is not defined, possible values: %s", fc.Name, s, strings.Join(f.Scopes, ", "))
			}
		}
		zones = append(zones, Zone{Zone: z, Kind: kind})
	}
	return zones, nil
}
