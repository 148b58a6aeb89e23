// Package ratelimit applies sliding-window request limits per client and
// route. Operations opt in by attaching Rules to their metadata.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// MetadataKey is the operation metadata key holding Rules.
const MetadataKey = "rateLimit"

// Rule allows at most Max requests per Window.
type Rule struct {
	Max    int64
	Window time.Duration
}

// Rules is the set of rules for one operation. All must pass.
type Rules []Rule

// RulesFor returns the rules attached to ctx's operation, if any.
func RulesFor(ctx huma.Context) Rules {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	rules, _ := op.Metadata[MetadataKey].(Rules)

	return rules
}

// Counter records hits in a sliding window.
type Counter interface {
	// Hit records one request under key and returns how many fall inside
	// the window ending now, this one included.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Exceeded describes the rule a request broke.
type Exceeded struct {
	Rule  Rule
	Count int64
}

func (e *Exceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d/%d requests in %s", e.Count, e.Rule.Max, e.Rule.Window)
}

// Limiter checks rules against a Counter.
type Limiter struct {
	counter Counter
}

// NewLimiter creates a limiter.
func NewLimiter(counter Counter) *Limiter {
	return &Limiter{counter: counter}
}

// Check records the request of client on route and returns the first rule
// it exceeds, or nil.
func (l *Limiter) Check(ctx context.Context, client, route string, rules Rules) (*Exceeded, error) {
	for _, rule := range rules {
		key := fmt.Sprintf("%s:%s:%d", client, route, rule.Window.Milliseconds())

		count, err := l.counter.Hit(ctx, key, rule.Window)
		if err != nil {
			return nil, fmt.Errorf("rate limit counter: %w", err)
		}

		if count > rule.Max {
			return &Exceeded{Rule: rule, Count: count}, nil
		}
	}

	return nil, nil
}
