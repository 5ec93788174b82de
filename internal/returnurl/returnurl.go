// Package returnurl recovers the launch presentation return URL from a token
// that failed validation. The token is untrusted: nothing but the return URL
// is ever read from it.
package returnurl

import (
	"errors"

	"github.com/ggoodman/lti1p3-go/internal/jwtauth"
	"github.com/ggoodman/lti1p3-go/message"
)

// ErrNotFound is returned when the token carries no return URL.
var ErrNotFound = errors.New("returnurl: no launch presentation return url")

// Extractor implements the narrow re-parse used by the redirect failure
// policy. It never retries and never verifies signatures or expiry.
type Extractor struct{}

// ReturnURL decodes raw without verification and returns its
// launch_presentation.return_url claim.
func (Extractor) ReturnURL(raw string) (string, error) {
	claims, err := jwtauth.ParseUnverified(raw)
	if err != nil {
		return "", err
	}
	lp, ok := claims[message.ClaimLaunchPresentation].(map[string]any)
	if !ok {
		return "", ErrNotFound
	}
	u, _ := lp["return_url"].(string)
	if u == "" {
		return "", ErrNotFound
	}
	return u, nil
}
