package carrier

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParam(t *testing.T) {
	tests := []struct {
		name  string
		req   func() *http.Request
		param string
		want  string
	}{
		{
			name:  "query",
			req:   func() *http.Request { return httptest.NewRequest(http.MethodGet, "/launch?id_token=abc", nil) },
			param: IDTokenParam,
			want:  "abc",
		},
		{
			name: "form body",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/launch", strings.NewReader(url.Values{"JWT": {"xyz"}}.Encode()))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
			param: JWTParam,
			want:  "xyz",
		},
		{
			name: "query wins over body",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/launch?id_token=q", strings.NewReader("id_token=b"))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
			param: IDTokenParam,
			want:  "q",
		},
		{
			name: "json body ignored",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/launch", strings.NewReader(`{"id_token":"x"}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			param: IDTokenParam,
			want:  "",
		},
		{
			name:  "absent",
			req:   func() *http.Request { return httptest.NewRequest(http.MethodGet, "/launch", nil) },
			param: IDTokenParam,
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.req()
			if got := Param(r, tt.param); got != tt.want {
				t.Fatalf("Param() = %q, want %q", got, tt.want)
			}
			// Second read must see the same value once the body was consumed.
			if got := Param(r, tt.param); got != tt.want {
				t.Fatalf("second Param() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer abc", want: "abc", ok: true},
		{header: "Bearer ", want: "", ok: false},
		{header: "Basic abc", want: "", ok: false},
		{header: "", want: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
