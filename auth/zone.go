package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Zone is a firewall zone: a named area of the URL space with its own
// authentication requirements. A Zone must not be mutated once handed to an
// authenticator; use Copy to derive a modified one.
type Zone struct {
	Name string
	// PathPrefix selects the requests belonging to the zone. Matching is
	// segment aware: "/a" matches "/a" and "/a/b" but not "/ab".
	PathPrefix string
	// AllowedMessageTypes restricts message zones. Empty allows every type.
	AllowedMessageTypes []string
	// AllowedScopes restricts service zones. Empty allows every scope.
	AllowedScopes []string
	// AllowAnonymous lets requests without any credential through.
	AllowAnonymous bool
}

// Validate returns an error if required invariants are not met.
func (z Zone) Validate() error {
	if z.Name == "" {
		return errors.New("zone: name required")
	}
	if !strings.HasPrefix(z.PathPrefix, "/") {
		return fmt.Errorf("zone %s: path prefix must start with '/'", z.Name)
	}
	return nil
}

// Matches reports whether path belongs to the zone.
func (z Zone) Matches(path string) bool {
	prefix := strings.TrimSuffix(z.PathPrefix, "/")
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Copy returns a deep copy safe for mutation by the caller.
func (z Zone) Copy() Zone {
	dup := z
	dup.AllowedMessageTypes = append([]string(nil), z.AllowedMessageTypes...)
	dup.AllowedScopes = append([]string(nil), z.AllowedScopes...)
	return dup
}
