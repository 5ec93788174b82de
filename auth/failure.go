package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ggoodman/lti1p3-go/internal/carrier"
	"github.com/ggoodman/lti1p3-go/internal/returnurl"
)

// ErrorMessageParam is appended to the return URL on redirect failures.
const ErrorMessageParam = "lti_errormsg"

// Format selects how a hard failure body is rendered.
type Format int

const (
	// FormatText is an HTML-escaped plain text body.
	FormatText Format = iota
	// FormatJSON is {"error":{"message":...}}.
	FormatJSON
)

// Challenge describes a WWW-Authenticate Bearer challenge. Error is empty
// when the request simply lacked credentials.
type Challenge struct {
	Error       string
	Description string
}

// FailureResponse is the transport-neutral rendering of an authentication
// failure.
type FailureResponse struct {
	Status   int
	Location string
	Message  string
	Format   Format
	// Challenge is set for service failures only.
	Challenge *Challenge
}

// FailurePolicy turns an authentication failure into a response.
type FailurePolicy interface {
	Respond(r *http.Request, err *AuthenticationError) FailureResponse
}

// HardFailure always answers with an error status: 400 for message type
// mismatches, 401 otherwise.
type HardFailure struct {
	Format    Format
	Challenge bool
}

func (p HardFailure) Respond(_ *http.Request, err *AuthenticationError) FailureResponse {
	resp := FailureResponse{
		Status:  http.StatusUnauthorized,
		Message: err.Error(),
		Format:  p.Format,
	}
	if errors.Is(err, ErrMessageTypeMismatch) {
		resp.Status = http.StatusBadRequest
	}
	if p.Challenge {
		resp.Challenge = &Challenge{Description: err.Message}
		if !errors.Is(err, ErrMissingCredential) {
			resp.Challenge.Error = "invalid_token"
		}
	}
	return resp
}

// ReturnURLExtractor recovers the return URL from an untrusted token.
type ReturnURLExtractor interface {
	ReturnURL(raw string) (string, error)
}

// RedirectIfPossible sends validation failures of a launch back to the
// platform's launch presentation return URL, with the message in the
// lti_errormsg query parameter. Any other failure, and launches without a
// usable return URL, fall back to Fallback.
type RedirectIfPossible struct {
	Extractor ReturnURLExtractor
	Fallback  HardFailure
}

func (p RedirectIfPossible) Respond(r *http.Request, err *AuthenticationError) FailureResponse {
	if !errors.Is(err, ErrValidationFailure) {
		return p.Fallback.Respond(r, err)
	}
	ex := p.Extractor
	if ex == nil {
		ex = returnurl.Extractor{}
	}
	target, xerr := ex.ReturnURL(carrier.Param(r, carrier.IDTokenParam))
	if xerr != nil || target == "" {
		return p.Fallback.Respond(r, err)
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	msg := err.Error()
	return FailureResponse{
		Status:   http.StatusFound,
		Location: target + sep + ErrorMessageParam + "=" + url.QueryEscape(msg),
		Message:  msg,
	}
}

// PolicyFor returns the failure policy of kind.
func PolicyFor(kind Kind) FailurePolicy {
	switch kind {
	case KindToolMessage:
		return RedirectIfPossible{Extractor: returnurl.Extractor{}, Fallback: HardFailure{Format: FormatText}}
	case KindService:
		return HardFailure{Format: FormatJSON, Challenge: true}
	default:
		return HardFailure{Format: FormatJSON}
	}
}
