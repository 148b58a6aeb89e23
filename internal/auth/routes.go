package auth

import (
	"net/http"
	"strings"
)

// Route is a method and path pattern. A `{name}` segment matches exactly one
// non-empty path segment.
type Route struct {
	Method  string
	Pattern string
}

// RouteTable lists the routes reachable without credentials.
type RouteTable struct {
	public []Route
}

// NewRouteTable creates a table of public routes.
func NewRouteTable(public ...Route) *RouteTable {
	return &RouteTable{public: public}
}

// DefaultPublicRoutes are the routes open in every mode.
func DefaultPublicRoutes() []Route {
	return []Route{
		{Method: http.MethodGet, Pattern: "/"},
		{Method: http.MethodGet, Pattern: "/login"},
		{Method: http.MethodGet, Pattern: "/api/login"},
		{Method: http.MethodPost, Pattern: "/api/login"},
		{Method: http.MethodGet, Pattern: "/api/callback"},
		{Method: http.MethodGet, Pattern: "/health"},
		{Method: http.MethodGet, Pattern: "/h/{code}"},
		{Method: http.MethodGet, Pattern: "/{code}"},
	}
}

// IsPublic reports whether method and path match a public route.
func (t *RouteTable) IsPublic(method, path string) bool {
	if method == http.MethodHead {
		method = http.MethodGet
	}

	for _, r := range t.public {
		if r.Method == method && matchPattern(r.Pattern, path) {
			return true
		}
	}

	return false
}

func matchPattern(pattern, path string) bool {
	if pattern == path {
		return true
	}

	// Only the leading slash is dropped: "/h/" is two segments, the second
	// empty, and never matches a parameter.
	want := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	got := strings.Split(strings.TrimPrefix(path, "/"), "/")

	if len(want) != len(got) {
		return false
	}

	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if got[i] == "" {
				return false
			}

			continue
		}

		if seg != got[i] {
			return false
		}
	}

	return true
}
