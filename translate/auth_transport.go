package translate

import (
	"fmt"
	"net/http"
)

// authTransport wraps a RoundTripper to add the Authorization header.
type authTransport struct {
	base   http.RoundTripper
	scheme string
	token  string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid side effects
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", fmt.Sprintf("%s %s", t.scheme, t.token))

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(reqClone)
}

func newAuthHTTPClient(base *http.Client, scheme, token string) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	return &http.Client{
		Timeout: base.Timeout,
		Transport: &authTransport{
			base:   base.Transport,
			scheme: scheme,
			token:  token,
		},
	}
}
