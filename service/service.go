// Package service serves LTI service endpoints behind a firewall zone of the
// service kind. The firewall authenticates the access token; NewHTTPHandler
// enforces the endpoint's method and media type, then hands the validated
// result to a Handler.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"

	"github.com/ggoodman/lti1p3-go/auth"
	"github.com/ggoodman/lti1p3-go/validation"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// Handler implements one LTI service endpoint.
type Handler interface {
	ServiceName() string
	// AllowedMethods lists accepted HTTP methods. Empty accepts any method.
	AllowedMethods() []string
	// AllowedContentType is matched against Accept for GET requests and
	// against Content-Type otherwise. Empty accepts any media type.
	AllowedContentType() string
	HandleValidatedServiceRequest(ctx context.Context, result *validation.Result, r *http.Request) (*Response, error)
}

// Response is written verbatim by the HTTP handler.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON builds a Response carrying v encoded as JSON.
func JSON(status int, v any) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Content-Type", jsonMediaType.String())
	return &Response{Status: status, Header: h, Body: b}, nil
}

type Option func(*HTTPHandler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *HTTPHandler) { h.log = l }
}

// HTTPHandler adapts a Handler to net/http.
type HTTPHandler struct {
	handler Handler
	log     *slog.Logger
}

func NewHTTPHandler(handler Handler, opts ...Option) *HTTPHandler {
	h := &HTTPHandler{handler: handler, log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := h.handler.ServiceName()

	if allowed := h.handler.AllowedMethods(); !methodAllowed(r.Method, allowed) {
		lower := make([]string, len(allowed))
		for i, m := range allowed {
			lower[i] = strings.ToLower(m)
		}
		msg := fmt.Sprintf("Not acceptable request method, accepts: [%s]", strings.Join(lower, ", "))
		h.log.ErrorContext(ctx, "service.reject", slog.String("service", name), slog.String("err", msg))
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		writeError(w, http.StatusMethodNotAllowed, msg)
		return
	}

	if allowed := h.handler.AllowedContentType(); allowed != "" && !mediaTypeAllowed(r, contenttype.NewMediaType(allowed)) {
		msg := fmt.Sprintf("Not acceptable request content type, accepts: %s", allowed)
		h.log.ErrorContext(ctx, "service.reject", slog.String("service", name), slog.String("err", msg))
		writeError(w, http.StatusNotAcceptable, msg)
		return
	}

	tok, ok := auth.TokenFromContext(ctx)
	if !ok || tok.Kind() != auth.KindService || !tok.IsAuthenticated() {
		aerr := auth.MissingCredential(auth.KindService)
		h.log.ErrorContext(ctx, "service.error", slog.String("service", name), slog.String("err", aerr.Error()))
		writeError(w, http.StatusUnauthorized, aerr.Error())
		return
	}

	resp, err := h.handler.HandleValidatedServiceRequest(ctx, tok.ValidationResult(), r)
	if err != nil {
		h.log.ErrorContext(ctx, "service.error", slog.String("service", name), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.log.InfoContext(ctx, "service.success", slog.String("service", name))

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

func methodAllowed(method string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, m := range allowed {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// mediaTypeAllowed requires the negotiated header to be present.
func mediaTypeAllowed(r *http.Request, allowed contenttype.MediaType) bool {
	if r.Method == http.MethodGet {
		accept := r.Header.Get("Accept")
		if accept == "" {
			return false
		}
		_, _, err := contenttype.GetAcceptableMediaTypeFromHeader(accept, []contenttype.MediaType{allowed})
		return err == nil
	}
	mt, err := contenttype.GetMediaType(r)
	if err != nil {
		return false
	}
	return mt.Matches(allowed)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": msg}})
}
