package api

import (
	"net/http"
)

// Authorizer decorates an outgoing request with credentials. It is passed
// explicitly to every call instead of living in shared client state.
type Authorizer interface {
	Authorize(r *http.Request)
}

// BasicAuth authorizes with an HTTP Basic username/password pair.
type BasicAuth struct {
	Username string
	Password string
}

// Authorize sets the Authorization header of r.
func (b BasicAuth) Authorize(r *http.Request) {
	r.SetBasicAuth(b.Username, b.Password)
}

type noAuth struct{}

func (noAuth) Authorize(*http.Request) {}

// NoAuth leaves requests unauthenticated.
var NoAuth Authorizer = noAuth{}
