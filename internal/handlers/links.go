package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkgate/internal/audit"
	"github.com/serroba/linkgate/internal/auth"
	"github.com/serroba/linkgate/internal/clock"
	"github.com/serroba/linkgate/internal/links"
	"github.com/serroba/linkgate/internal/messaging"
	"go.uber.org/zap"
)

// Sweeper removes stale records among listed keys.
type Sweeper interface {
	Sweep(ctx context.Context, keys []string) int
}

// LinkHandler serves link management and redirects.
type LinkHandler struct {
	links   *links.Store
	sweeper Sweeper
	emit    messaging.Emit[audit.LinkEvent]
	clock   clock.Clock
	logger  *zap.Logger
}

// NewLinkHandler creates a link handler.
func NewLinkHandler(
	store *links.Store,
	sweeper Sweeper,
	emit messaging.Emit[audit.LinkEvent],
	c clock.Clock,
	logger *zap.Logger,
) *LinkHandler {
	if c == nil {
		c = clock.Real{}
	}

	return &LinkHandler{
		links:   store,
		sweeper: sweeper,
		emit:    emit,
		clock:   c,
		logger:  logger,
	}
}

func (h *LinkHandler) Shorten(ctx context.Context, req *ShortenRequest) (*ShortenResponse, error) {
	link, err := h.links.Shorten(ctx, req.Body.URL, req.Body.Slug)
	if err != nil {
		return nil, h.linkError(err, "failed to save link")
	}

	h.record(ctx, audit.ActionCreated, link.Code, link.URL)

	resp := &ShortenResponse{Status: http.StatusCreated}
	resp.Body.ShortCode = string(link.Code)
	resp.Body.URL = link.URL

	return resp, nil
}

// List returns a page of links and sweeps stale sessions met on the way.
func (h *LinkHandler) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	page, err := h.links.List(ctx, links.Query{
		Limit:  req.Limit,
		Cursor: req.Cursor,
		Search: req.Search,
	})
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to list links")
	}

	if h.sweeper != nil && len(page.Reserved) > 0 {
		h.sweeper.Sweep(ctx, page.Reserved)
	}

	resp := &ListResponse{}
	resp.Body.URLs = make([]LinkView, 0, len(page.Links))
	resp.Body.Cursor = page.Cursor
	resp.Body.Complete = page.Complete

	for i := range page.Links {
		resp.Body.URLs = append(resp.Body.URLs, toView(&page.Links[i]))
	}

	return resp, nil
}

func (h *LinkHandler) Update(ctx context.Context, req *UpdateRequest) (*LinkResponse, error) {
	link, err := h.links.Update(ctx, links.Code(req.Code), req.Body.URL)
	if err != nil {
		return nil, h.linkError(err, "failed to update link")
	}

	h.record(ctx, audit.ActionUpdated, link.Code, link.URL)

	return &LinkResponse{Body: toView(link)}, nil
}

func (h *LinkHandler) Delete(ctx context.Context, req *CodeRequest) (*SuccessResponse, error) {
	if err := h.links.Delete(ctx, links.Code(req.Code)); err != nil {
		return nil, h.linkError(err, "failed to delete link")
	}

	h.record(ctx, audit.ActionDeleted, links.Code(req.Code), "")

	resp := &SuccessResponse{}
	resp.Body.Success = true

	return resp, nil
}

// Redirect resolves a short code. Unknown codes get the not-found page.
func (h *LinkHandler) Redirect(ctx context.Context, req *CodeRequest) (*RedirectResponse, error) {
	link, err := h.links.Get(ctx, links.Code(req.Code))
	if err != nil {
		if errors.Is(err, links.ErrNotFound) {
			return &RedirectResponse{
				Status:      http.StatusNotFound,
				ContentType: htmlContentType,
				Body:        notFoundPage,
			}, nil
		}

		h.logger.Error("failed to resolve link", zap.String("code", req.Code), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to resolve link")
	}

	h.record(ctx, audit.ActionResolved, link.Code, link.URL)

	return &RedirectResponse{Status: http.StatusFound, Location: link.URL}, nil
}

func (h *LinkHandler) linkError(err error, fallback string) error {
	switch {
	case errors.Is(err, links.ErrConflict):
		return huma.Error409Conflict("Slug already exists")
	case errors.Is(err, links.ErrNotFound):
		return huma.Error404NotFound("Not found")
	case errors.Is(err, links.ErrInvalidURL):
		return huma.Error400BadRequest("A valid http or https url is required")
	case errors.Is(err, links.ErrInvalidSlug):
		return huma.Error400BadRequest("Slug may only contain letters, digits, '-' and '_'")
	default:
		h.logger.Error(fallback, zap.Error(err))

		return huma.Error500InternalServerError(fallback)
	}
}

func (h *LinkHandler) record(ctx context.Context, action audit.Action, code links.Code, target string) {
	if h.emit == nil {
		return
	}

	meta := RequestMetaFromContext(ctx)

	h.emit(ctx, &audit.LinkEvent{
		Action:    action,
		Code:      string(code),
		URL:       target,
		At:        h.clock.Now().UTC(),
		Actor:     actor(ctx),
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		Referrer:  meta.Referrer,
	})
}

func actor(ctx context.Context) string {
	p, ok := auth.PrincipalFrom(ctx)

	switch {
	case !ok:
		return ""
	case p.APIKey:
		return "api_key"
	case p.Session != nil && p.Session.Me != "":
		return p.Session.Me
	default:
		return "session"
	}
}

func toView(link *links.Link) LinkView {
	view := LinkView{ShortCode: string(link.Code), URL: link.URL}
	if !link.CreatedAt.IsZero() {
		view.Created = link.CreatedAt.UTC().Format(time.RFC3339)
	}

	return view
}
