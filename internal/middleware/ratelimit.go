package middleware

import (
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkgate/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimit enforces the ratelimit.Rules attached to each operation.
// Operations without rules pass through. Counters are keyed by client and
// route template, so /{code} shares one budget across codes. The client is
// its IP alone; headers it controls cannot open a new budget.
func RateLimit(
	api huma.API,
	limiter *ratelimit.Limiter,
	proxies *Proxies,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		rules := ratelimit.RulesFor(ctx)
		if len(rules) == 0 {
			next(ctx)

			return
		}

		route := ctx.Operation().Method + " " + ctx.Operation().Path

		client := proxies.ClientIP(ctx)

		exceeded, err := limiter.Check(ctx.Context(), client, route, rules)
		if err != nil {
			logger.Error("rate limit check failed", zap.String("route", route), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error")

			return
		}

		if exceeded != nil {
			logger.Warn("rate limit exceeded",
				zap.String("route", route),
				zap.String("client_ip", client),
				zap.Int64("count", exceeded.Count),
				zap.Int64("max", exceeded.Rule.Max),
			)
			ctx.SetHeader("Retry-After", strconv.Itoa(int(exceeded.Rule.Window.Seconds())))
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, exceeded.Error())

			return
		}

		next(ctx)
	}
}
