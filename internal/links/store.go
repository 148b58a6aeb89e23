package links

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/serroba/linkgate/internal/clock"
	"github.com/serroba/linkgate/internal/kv"
)

// maxGenerateAttempts bounds retries when a generated code collides.
const maxGenerateAttempts = 5

// CodeGenerator generates candidate short codes.
type CodeGenerator func() string

// Query selects a page of links.
type Query struct {
	Limit  int
	Cursor string
	// Search keeps links whose code or URL contains it, case-insensitively.
	Search string
}

// Page is one page of links. Reserved holds the non-link keys met while
// paging so callers can inspect them without a second scan.
type Page struct {
	Links    []Link
	Reserved []string
	Cursor   string
	Complete bool
}

// Store is the link repository over a kv.Store.
type Store struct {
	kv       kv.Store
	generate CodeGenerator
	clock    clock.Clock
	reserved []string
}

// NewStore creates a link store. Keys starting with any of reservedPrefixes
// are never read, written or listed as links.
func NewStore(store kv.Store, generate CodeGenerator, c clock.Clock, reservedPrefixes ...string) *Store {
	if c == nil {
		c = clock.Real{}
	}

	return &Store{
		kv:       store,
		generate: generate,
		clock:    c,
		reserved: reservedPrefixes,
	}
}

// IsReserved reports whether key belongs to another record kind.
func (s *Store) IsReserved(key string) bool {
	for _, prefix := range s.reserved {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

// Shorten creates a link. An empty slug gets a generated code; a taken slug
// fails with ErrConflict and leaves the existing mapping untouched.
func (s *Store) Shorten(ctx context.Context, rawURL, slug string) (*Link, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	if slug != "" {
		if err := ValidateSlug(slug); err != nil {
			return nil, err
		}

		if s.IsReserved(slug) {
			return nil, ErrInvalidSlug
		}

		return s.create(ctx, Code(slug), rawURL)
	}

	for range maxGenerateAttempts {
		code := Code(s.generate())
		if s.IsReserved(string(code)) || ShadowedByRoute(string(code)) {
			continue
		}

		link, err := s.create(ctx, code, rawURL)
		if errors.Is(err, ErrConflict) {
			continue
		}

		return link, err
	}

	return nil, fmt.Errorf("generate code: %d collisions", maxGenerateAttempts)
}

func (s *Store) create(ctx context.Context, code Code, rawURL string) (*Link, error) {
	now := s.clock.Now().UTC().Truncate(time.Second)

	err := s.kv.Put(ctx, string(code), rawURL,
		kv.WithMetadata(kv.Metadata{MetadataCreated: now.Format(time.RFC3339)}),
		kv.IfAbsent(),
	)
	if err != nil {
		if errors.Is(err, kv.ErrExists) {
			return nil, ErrConflict
		}

		return nil, fmt.Errorf("save link %s: %w", code, err)
	}

	return &Link{Code: code, URL: rawURL, CreatedAt: now}, nil
}

// Get resolves a code. Reserved keys resolve as ErrNotFound.
func (s *Store) Get(ctx context.Context, code Code) (*Link, error) {
	if code == "" || s.IsReserved(string(code)) {
		return nil, ErrNotFound
	}

	entry, err := s.kv.GetWithMetadata(ctx, string(code))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get link %s: %w", code, err)
	}

	return fromEntry(entry), nil
}

// Update replaces the target URL and keeps the original metadata.
func (s *Store) Update(ctx context.Context, code Code, rawURL string) (*Link, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	var md kv.Metadata
	if !existing.CreatedAt.IsZero() {
		md = kv.Metadata{MetadataCreated: existing.CreatedAt.Format(time.RFC3339)}
	}

	if err := s.kv.Put(ctx, string(code), rawURL, kv.WithMetadata(md)); err != nil {
		return nil, fmt.Errorf("update link %s: %w", code, err)
	}

	existing.URL = rawURL

	return existing, nil
}

// Delete removes a link, failing with ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, code Code) error {
	if _, err := s.Get(ctx, code); err != nil {
		return err
	}

	if err := s.kv.Delete(ctx, string(code)); err != nil {
		return fmt.Errorf("delete link %s: %w", code, err)
	}

	return nil
}

// List returns one page of links. Reserved keys are reported in
// Page.Reserved and never appear in Page.Links.
func (s *Store) List(ctx context.Context, q Query) (*Page, error) {
	res, err := s.kv.List(ctx, kv.ListOptions{Limit: q.Limit, Cursor: q.Cursor})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	page := &Page{
		Links:    make([]Link, 0, len(res.Keys)),
		Cursor:   res.Cursor,
		Complete: res.Complete,
	}

	search := strings.ToLower(q.Search)

	for _, key := range res.Keys {
		if s.IsReserved(key) {
			page.Reserved = append(page.Reserved, key)

			continue
		}

		entry, err := s.kv.GetWithMetadata(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}

			return nil, fmt.Errorf("get link %s: %w", key, err)
		}

		link := fromEntry(entry)
		if search != "" && !matches(link, search) {
			continue
		}

		page.Links = append(page.Links, *link)
	}

	return page, nil
}

func matches(link *Link, search string) bool {
	return strings.Contains(strings.ToLower(string(link.Code)), search) ||
		strings.Contains(strings.ToLower(link.URL), search)
}

func fromEntry(entry *kv.Entry) *Link {
	link := &Link{Code: Code(entry.Key), URL: entry.Value}

	if created, ok := entry.Metadata[MetadataCreated]; ok {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			link.CreatedAt = t
		}
	}

	return link
}
