package pubtrack

import "net/http"

// DefaultAuthScheme is the keyword the pubtrack service expects in the
// Authorization header before the token value.
const DefaultAuthScheme = "TOKEN"

// Authenticator decorates outgoing requests with credentials. Implementations
// must not modify anything besides request headers.
type Authenticator interface {
	Apply(req *http.Request) error
}

// TokenAuthenticator authenticates requests with a static API token in the
// Authorization header, e.g. "Authorization: TOKEN 8f3a...".
type TokenAuthenticator struct {
	Scheme string
	Token  string
}

// NewTokenAuthenticator returns a TokenAuthenticator using the default scheme.
func NewTokenAuthenticator(token string) *TokenAuthenticator {
	return &TokenAuthenticator{Scheme: DefaultAuthScheme, Token: token}
}

func (a *TokenAuthenticator) Apply(req *http.Request) error {
	scheme := a.Scheme
	if scheme == "" {
		scheme = DefaultAuthScheme
	}
	req.Header.Set("Authorization", scheme+" "+a.Token)
	return nil
}

// nullAuthenticator is installed until a real strategy is configured. Every
// request through it fails, so a missing token surfaces immediately instead
// of as a confusing 401 from the server.
type nullAuthenticator struct{}

func (nullAuthenticator) Apply(*http.Request) error {
	return ErrAuthNotConfigured
}
