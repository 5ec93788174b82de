// Package auth authenticates inbound LTI 1.3 requests.
//
// Three kinds of request are recognised, each identified by the credential it
// carries:
//
//   - tool messages: platform-originating launches received by a tool, carried
//     in the id_token parameter;
//   - platform messages: tool-originating messages received by a platform,
//     carried in the JWT parameter;
//   - service calls: LTI service requests carrying an OAuth2 access token in
//     the Authorization header.
//
// An Authenticator of the matching kind is bound to one Zone. Supports is a
// pure check on the credential carrier and the zone name; Authenticate runs
// the validation engine (see package validation), applies the zone's message
// type allow-list and builds a Token.
//
// # Failures
//
// Authenticate returns an *AuthenticationError. Its Reason is one of
// ErrMalformedToken, ErrValidationFailure, ErrMessageTypeMismatch or
// ErrMissingCredential so callers can use errors.Is. The FailurePolicy for
// the authenticator's kind (PolicyFor) turns the error into a
// FailureResponse: tool messages redirect back to the platform's return URL
// when the launch carries one, everything else is a hard 401 (or 400 for a
// message type mismatch).
//
// # Tokens
//
// A successful Token is attached to the request context with WithToken and
// read back with TokenFromContext.
package auth
