package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkgate/internal/handlers"
)

// RequestMeta adds client IP, user agent, referrer and origin to the request
// context. proxies decides which forwarding headers are believed.
func RequestMeta(_ huma.API, proxies *Proxies) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			ClientIP:  proxies.ClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
			Origin:    proxies.Origin(ctx),
		}

		next(huma.WithContext(ctx, handlers.ContextWithRequestMeta(ctx.Context(), meta)))
	}
}
