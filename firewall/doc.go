// Package firewall puts LTI authentication in front of net/http handlers.
//
// A Firewall owns an ordered list of zones (auth.Zone) and the
// authenticators bound to them. For each request the first zone whose path
// prefix matches is selected; requests outside every zone pass through
// untouched. Inside a zone the first authenticator that supports the request
// runs. On success the resulting auth.Token is attached to the request
// context (see auth.TokenFromContext) before the wrapped handler is called.
// On failure the response chosen by auth.PolicyFor for the authenticator's
// kind is written and the wrapped handler is not called.
//
// A request that carries no credential for its zone is rejected with a
// missing credential failure unless the zone allows anonymous access.
package firewall
