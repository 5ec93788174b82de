// Package carrier reads LTI credentials from incoming requests: the id_token
// and JWT message parameters, and bearer access tokens.
package carrier

import (
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
)

// Parameter and header names carrying LTI credentials.
const (
	IDTokenParam        = "id_token"
	JWTParam            = "JWT"
	AuthorizationHeader = "Authorization"
)

var formMediaTypes = []contenttype.MediaType{
	contenttype.NewMediaType("application/x-www-form-urlencoded"),
	contenttype.NewMediaType("multipart/form-data"),
}

// Param returns the named parameter from the query string, falling back to a
// form encoded body. Reading the body is idempotent: the parsed form is cached
// on the request.
func Param(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	if !hasFormBody(r) {
		return ""
	}
	return r.PostFormValue(name)
}

func hasFormBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return r.PostForm != nil
	}
	mt, err := contenttype.GetMediaType(r)
	if err != nil {
		return false
	}
	for _, want := range formMediaTypes {
		if mt.Matches(want) {
			return true
		}
	}
	return false
}

// Authorization returns the raw Authorization header.
func Authorization(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(AuthorizationHeader))
}

// BearerToken extracts the token from a "Bearer <token>" header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
