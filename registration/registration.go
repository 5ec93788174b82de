// Package registration models the trust relationships between LTI platforms
// and tools. Repositories are built once at startup and are read-only
// afterwards, so they are safe for concurrent use without locking.
package registration

import (
	"errors"
	"fmt"
	"slices"
)

// Platform is the LMS side of a registration.
type Platform struct {
	Identifier            string
	Name                  string
	Audience              string
	OIDCAuthenticationURL string
	OAuth2AccessTokenURL  string
}

// Tool is the content provider side of a registration.
type Tool struct {
	Identifier        string
	Name              string
	Audience          string
	OIDCInitiationURL string
	LaunchURL         string
	DeepLinkingURL    string
}

// Registration binds one platform to one tool under a client id.
type Registration struct {
	Identifier    string
	ClientID      string
	Platform      Platform
	Tool          Tool
	DeploymentIDs []string

	// Key chains are optional when the matching JWKS URL is configured.
	PlatformKeyChain *KeyChain
	ToolKeyChain     *KeyChain
	PlatformJWKSURL  string
	ToolJWKSURL      string
}

// HasDeploymentID reports whether id is one of the registration deployments.
func (r *Registration) HasDeploymentID(id string) bool {
	return slices.Contains(r.DeploymentIDs, id)
}

// DefaultDeploymentID returns the first configured deployment id, if any.
func (r *Registration) DefaultDeploymentID() string {
	if len(r.DeploymentIDs) == 0 {
		return ""
	}
	return r.DeploymentIDs[0]
}

func (r *Registration) validate() error {
	if r.Identifier == "" {
		return errors.New("registration: identifier required")
	}
	if r.ClientID == "" {
		return fmt.Errorf("registration %s: client id required", r.Identifier)
	}
	if r.Platform.Audience == "" {
		return fmt.Errorf("registration %s: platform audience required", r.Identifier)
	}
	if r.Tool.Audience == "" {
		return fmt.Errorf("registration %s: tool audience required", r.Identifier)
	}
	return nil
}

// Repository indexes registrations by identifier and keeps declaration order
// for the issuer lookups.
type Repository struct {
	byID  map[string]*Registration
	order []*Registration
}

// NewRepository validates and indexes the given registrations.
func NewRepository(regs ...*Registration) (*Repository, error) {
	repo := &Repository{byID: make(map[string]*Registration, len(regs))}
	for _, reg := range regs {
		if reg == nil {
			continue
		}
		if err := reg.validate(); err != nil {
			return nil, err
		}
		if _, dup := repo.byID[reg.Identifier]; dup {
			return nil, fmt.Errorf("registration %s: duplicate identifier", reg.Identifier)
		}
		repo.byID[reg.Identifier] = reg
		repo.order = append(repo.order, reg)
	}
	return repo, nil
}

func (r *Repository) Find(identifier string) *Registration {
	return r.byID[identifier]
}

func (r *Repository) FindAll() []*Registration {
	return append([]*Registration(nil), r.order...)
}

func (r *Repository) FindByClientID(clientID string) *Registration {
	for _, reg := range r.order {
		if reg.ClientID == clientID {
			return reg
		}
	}
	return nil
}

// FindByPlatformIssuer matches the platform audience. An empty clientID
// returns the first registration for that platform.
func (r *Repository) FindByPlatformIssuer(issuer, clientID string) *Registration {
	for _, reg := range r.order {
		if reg.Platform.Audience != issuer {
			continue
		}
		if clientID == "" || reg.ClientID == clientID {
			return reg
		}
	}
	return nil
}

// FindByToolIssuer matches the tool audience, same clientID rules as
// FindByPlatformIssuer.
func (r *Repository) FindByToolIssuer(issuer, clientID string) *Registration {
	for _, reg := range r.order {
		if reg.Tool.Audience != issuer {
			continue
		}
		if clientID == "" || reg.ClientID == clientID {
			return reg
		}
	}
	return nil
}
