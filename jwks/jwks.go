// Package jwks publishes the public halves of configured key chains as JSON
// Web Key Sets.
package jwks

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
	jose "github.com/go-jose/go-jose/v4"

	"github.com/ggoodman/lti1p3-go/registration"
)

// PathValue names the path wildcard holding "<keySetName>.json", e.g.
// "GET /.well-known/jwks/{keySetFile}".
const PathValue = "keySetFile"

var jsonMediaType = contenttype.NewMediaType("application/json")

// Exporter builds key sets from a key chain repository.
type Exporter struct {
	keyChains *registration.KeyChainRepository
}

func NewExporter(keyChains *registration.KeyChainRepository) *Exporter {
	return &Exporter{keyChains: keyChains}
}

// Export returns the key set named keySetName. Unknown names yield an empty
// set.
func (e *Exporter) Export(keySetName string) jose.JSONWebKeySet {
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
	for _, kc := range e.keyChains.FindByKeySetName(keySetName) {
		set.Keys = append(set.Keys, kc.JWK())
	}
	return set
}

// Handler serves Export over HTTP.
type Handler struct {
	exporter *Exporter
}

func NewHandler(exporter *Exporter) *Handler {
	return &Handler{exporter: exporter}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(r.PathValue(PathValue), ".json")
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.exporter.Export(name))
}
