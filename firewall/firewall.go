package firewall

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/lti1p3-go/auth"
	"github.com/ggoodman/lti1p3-go/internal/logctx"
)

const (
	wwwAuthenticateHeader = "WWW-Authenticate"
	textContentType       = "text/plain; charset=utf-8"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// Option configures a Firewall.
type Option func(*config)

type config struct {
	logger *slog.Logger
	realm  string
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRealm sets the realm advertised in service WWW-Authenticate
// challenges. Omitted when empty.
func WithRealm(realm string) Option {
	return func(c *config) { c.realm = strings.TrimSpace(realm) }
}

type zoneEntry struct {
	zone           auth.Zone
	authenticators []auth.Authenticator
}

// Firewall is immutable after New and safe for concurrent use.
type Firewall struct {
	zones []zoneEntry
	log   *slog.Logger
	realm string
}

// New validates zones and binds each authenticator to the zone of the same
// name. Zones are matched in the order given. All authenticators bound to a
// zone must be of the same kind, so a request missing its credential is
// always answered in the format of that kind.
func New(zones []auth.Zone, authenticators []auth.Authenticator, opts ...Option) (*Firewall, error) {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &Firewall{
		log:   slog.New(logctx.Handler{Handler: cfg.logger.Handler()}),
		realm: cfg.realm,
	}
	index := make(map[string]int, len(zones))
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return nil, err
		}
		if _, dup := index[z.Name]; dup {
			return nil, fmt.Errorf("firewall: duplicate zone %s", z.Name)
		}
		index[z.Name] = len(f.zones)
		f.zones = append(f.zones, zoneEntry{zone: z.Copy()})
	}
	for _, a := range authenticators {
		name := a.Zone().Name
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("firewall: authenticator %s bound to unknown zone %s", a.Kind(), name)
		}
		if bound := f.zones[i].authenticators; len(bound) > 0 && bound[0].Kind() != a.Kind() {
			return nil, fmt.Errorf("firewall: zone %s mixes %s and %s authenticators", name, bound[0].Kind(), a.Kind())
		}
		f.zones[i].authenticators = append(f.zones[i].authenticators, a)
	}
	for _, e := range f.zones {
		if len(e.authenticators) == 0 && !e.zone.AllowAnonymous {
			return nil, fmt.Errorf("firewall: zone %s has no authenticator", e.zone.Name)
		}
	}
	return f, nil
}

// Zone returns the zone r belongs to.
func (f *Firewall) Zone(r *http.Request) (auth.Zone, bool) {
	if e := f.entry(r); e != nil {
		return e.zone.Copy(), true
	}
	return auth.Zone{}, false
}

func (f *Firewall) entry(r *http.Request) *zoneEntry {
	for i := range f.zones {
		if f.zones[i].zone.Matches(r.URL.Path) {
			return &f.zones[i]
		}
	}
	return nil
}

// Middleware authenticates requests before handing them to next. A request
// in a non-anonymous zone that no authenticator supports is rejected with the
// missing credential failure of the zone's kind.
func (f *Firewall) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
			RequestID:  uuid.NewString(),
			Method:     r.Method,
			UserAgent:  r.UserAgent(),
			RemoteAddr: r.RemoteAddr,
			Path:       r.URL.Path,
		})
		r = r.WithContext(ctx)

		e := f.entry(r)
		if e == nil {
			next.ServeHTTP(w, r)
			return
		}

		var a auth.Authenticator
		for _, cand := range e.authenticators {
			if cand.Supports(r, e.zone) {
				a = cand
				break
			}
		}

		if a == nil {
			if e.zone.AllowAnonymous {
				f.log.DebugContext(ctx, "auth.check.anonymous", slog.String("zone", e.zone.Name))
				next.ServeHTTP(w, r)
				return
			}
			aerr := auth.MissingCredential(e.authenticators[0].Kind())
			f.log.InfoContext(ctx, "auth.check.missing", slog.String("zone", e.zone.Name), slog.String("err", aerr.Error()))
			f.writeFailure(w, auth.PolicyFor(aerr.Kind).Respond(r, aerr))
			return
		}

		tok, err := a.Authenticate(ctx, r)
		if err != nil {
			var aerr *auth.AuthenticationError
			if !errors.As(err, &aerr) {
				f.log.ErrorContext(ctx, "auth.check.error", slog.String("zone", e.zone.Name), slog.String("err", err.Error()))
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			f.log.InfoContext(ctx, "auth.check.fail", slog.String("zone", e.zone.Name), slog.String("kind", aerr.Kind.String()), slog.String("err", err.Error()))
			f.writeFailure(w, auth.PolicyFor(aerr.Kind).Respond(r, aerr))
			return
		}

		ad := &logctx.AuthData{Zone: e.zone.Name, Kind: tok.Kind().String(), UserID: tok.UserIdentifier()}
		if reg := tok.Registration(); reg != nil {
			ad.Registration = reg.Identifier
		}
		ctx = logctx.WithAuthData(ctx, ad)
		f.log.InfoContext(ctx, "auth.check.ok")

		next.ServeHTTP(w, r.WithContext(auth.WithToken(ctx, tok)))
	})
}

func (f *Firewall) writeFailure(w http.ResponseWriter, resp auth.FailureResponse) {
	if resp.Location != "" {
		w.Header().Set("Location", resp.Location)
		w.WriteHeader(resp.Status)
		return
	}
	if resp.Challenge != nil {
		params := map[string]string{}
		if resp.Challenge.Error != "" {
			params["error"] = resp.Challenge.Error
			params["error_description"] = resp.Challenge.Description
		}
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(f.realm, params))
	}
	switch resp.Format {
	case auth.FormatJSON:
		writeJSONError(w, resp.Status, resp.Message)
	default:
		w.Header().Set("Content-Type", textContentType)
		w.WriteHeader(resp.Status)
		_, _ = w.Write([]byte(resp.Message))
	}
}

// writeJSONError emits {"error":{"message":"<reason>"}}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": msg}})
}

// buildBearerChallenge builds a Bearer challenge header value:
//
//	Bearer realm="<realm>", error="...", error_description="..."
//
// Realm is omitted if empty.
func buildBearerChallenge(realm string, params map[string]string) string {
	pieces := make([]string, 0, 1+len(params))
	esc := func(v string) string { return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) }
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	if v, ok := params["error"]; ok {
		pieces = append(pieces, fmt.Sprintf(`error="%s"`, esc(v)))
	}
	if v, ok := params["error_description"]; ok {
		pieces = append(pieces, fmt.Sprintf(`error_description="%s"`, esc(v)))
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}
