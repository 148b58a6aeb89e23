package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkgate/internal/ratelimit"
)

// RegisterRoutes registers every operation. Static paths are registered
// before the catch-all short code route.
func RegisterRoutes(api huma.API, links *LinkHandler, authH *AuthHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "app-shell",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Application shell",
		Tags:        []string{"Pages"},
		Hidden:      true,
	}, Index)

	huma.Register(api, huma.Operation{
		OperationID: "login-page",
		Method:      http.MethodGet,
		Path:        "/login",
		Summary:     "Login page",
		Tags:        []string{"Pages"},
		Hidden:      true,
	}, Login)

	huma.Register(api, huma.Operation{
		OperationID: "start-login",
		Method:      http.MethodGet,
		Path:        "/api/login",
		Summary:     "Start login",
		Description: "In oauth mode redirects to the identity provider. Other modes answer 204.",
		Tags:        []string{"Auth"},
	}, authH.StartLogin)

	huma.Register(api, huma.Operation{
		OperationID: "password-login",
		Method:      http.MethodPost,
		Path:        "/api/login",
		Summary:     "Password login",
		Description: "Exchanges the admin password for a session token. Only available in password mode.",
		Tags:        []string{"Auth"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.Rules{
				{Window: time.Minute, Max: 5},
				{Window: time.Hour, Max: 30},
			},
		},
	}, authH.PasswordLogin)

	huma.Register(api, huma.Operation{
		OperationID: "oauth-callback",
		Method:      http.MethodGet,
		Path:        "/api/callback",
		Summary:     "OAuth callback",
		Tags:        []string{"Auth"},
	}, authH.Callback)

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/logout",
		Summary:     "Log out",
		Tags:        []string{"Auth"},
	}, authH.Logout)

	huma.Register(api, huma.Operation{
		OperationID: "list-links",
		Method:      http.MethodGet,
		Path:        "/api/urls",
		Summary:     "List links",
		Tags:        []string{"Links"},
	}, links.List)

	huma.Register(api, huma.Operation{
		OperationID:   "shorten",
		Method:        http.MethodPost,
		Path:          "/api/shorten",
		Summary:       "Create link",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.Rules{
				{Window: time.Minute, Max: 30},
				{Window: 24 * time.Hour, Max: 1000},
			},
		},
	}, links.Shorten)

	huma.Register(api, huma.Operation{
		OperationID: "update-link",
		Method:      http.MethodPut,
		Path:        "/api/urls/{code}",
		Summary:     "Update link target",
		Tags:        []string{"Links"},
	}, links.Update)

	huma.Register(api, huma.Operation{
		OperationID: "delete-link",
		Method:      http.MethodDelete,
		Path:        "/api/urls/{code}",
		Summary:     "Delete link",
		Tags:        []string{"Links"},
	}, links.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "redirect-prefixed",
		Method:      http.MethodGet,
		Path:        "/h/{code}",
		Summary:     "Resolve short code",
		Tags:        []string{"Redirects"},
	}, links.Redirect)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Resolve short code",
		Tags:        []string{"Redirects"},
	}, links.Redirect)
}
