package auth

import (
	"net/http"
)

// TokenSource returns the current access token, empty when signed out.
type TokenSource interface {
	Token() (string, error)
}

// Transport sets the Authorization header on outgoing requests.
type Transport struct {
	Base   http.RoundTripper
	Source TokenSource
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	h, err := Header(t.Source)
	if err != nil {
		return nil, err
	}
	if len(h) > 0 {
		r = r.Clone(r.Context())
		for k, v := range h {
			r.Header[k] = v
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// Header builds auth headers for callers that do not go through Transport (websocket dial).
func Header(ts TokenSource) (http.Header, error) {
	h := http.Header{}
	if ts == nil {
		return h, nil
	}
	tok, err := ts.Token()
	if err != nil {
		return nil, err
	}
	if tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	return h, nil
}

// StaticToken is a fixed token, handy for tests and one-off commands.
type StaticToken string

func (s StaticToken) Token() (string, error) { return string(s), nil }
