package middleware

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkgate/internal/auth"
	"go.uber.org/zap"
)

// Gate rejects protected requests without valid credentials with
// 401 {"error": "<reason>"} and attaches the principal to allowed ones.
func Gate(api huma.API, gate *auth.Gate, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		u := ctx.URL()

		verdict, err := gate.Evaluate(ctx.Context(), auth.Request{
			Method:        ctx.Method(),
			Path:          u.Path,
			Authorization: ctx.Header("Authorization"),
		})
		if err != nil {
			logger.Error("auth check failed", zap.String("path", u.Path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error")

			return
		}

		if !verdict.Allowed {
			logger.Debug("request denied",
				zap.String("method", ctx.Method()),
				zap.String("path", u.Path),
				zap.String("reason", verdict.Reason),
			)
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, verdict.Reason)

			return
		}

		if verdict.Principal != nil {
			ctx = huma.WithContext(ctx, auth.WithPrincipal(ctx.Context(), verdict.Principal))
		}

		next(ctx)
	}
}
