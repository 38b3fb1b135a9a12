package httpx

import (
	"net/http"

	"github.com/epicevents/epicevents/internal/authz"
)

// Actor returns the authenticated identity from the request context. When
// no identity is present it writes a 401 problem response and returns
// ok=false; a missing identity means the route was mounted outside the
// authentication middleware.
func Actor(w http.ResponseWriter, r *http.Request) (authz.Identity, bool) {
	identity := authz.IdentityFromContext(r.Context())
	if identity == nil {
		Problem(w, http.StatusUnauthorized, "Authentication Required", "login first")
		return authz.Identity{}, false
	}
	return *identity, true
}
