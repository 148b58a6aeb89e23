// Package audit records the link lifecycle. Handlers emit events; a consumer
// hands them to a Sink.
package audit

import (
	"context"
	"time"
)

// Topic carries link lifecycle events.
const Topic = "links.events"

// Action is what happened to a link.
type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionDeleted  Action = "deleted"
	ActionResolved Action = "resolved"
)

// LinkEvent describes one lifecycle change or redirect.
type LinkEvent struct {
	Action    Action    `json:"action"`
	Code      string    `json:"code"`
	URL       string    `json:"url,omitempty"`
	At        time.Time `json:"at"`
	Actor     string    `json:"actor,omitempty"`
	ClientIP  string    `json:"clientIp,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
}

// Sink persists events.
type Sink interface {
	Record(ctx context.Context, event *LinkEvent) error
}
