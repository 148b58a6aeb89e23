package links_test

import (
	"context"
	"testing"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/serroba/linkgate/internal/clock"
	"github.com/serroba/linkgate/internal/kv"
	"github.com/serroba/linkgate/internal/links"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://example.com"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*links.Store, *kv.MemoryStore) {
	t.Helper()

	gen, err := nanoid.Standard(8)
	require.NoError(t, err)

	mem := kv.NewMemoryStore(nil)

	return links.NewStore(mem, gen, clock.NewMock(testNow), "session:", "oauth:"), mem
}

func TestStore_Shorten(t *testing.T) {
	ctx := context.Background()

	t.Run("uses custom slug", func(t *testing.T) {
		s, _ := newTestStore(t)

		link, err := s.Shorten(ctx, testURL, "abc")

		require.NoError(t, err)
		assert.Equal(t, links.Code("abc"), link.Code)
		assert.Equal(t, testURL, link.URL)
		assert.Equal(t, testNow, link.CreatedAt)
	})

	t.Run("records created metadata", func(t *testing.T) {
		s, mem := newTestStore(t)

		_, err := s.Shorten(ctx, testURL, "abc")
		require.NoError(t, err)

		entry, err := mem.GetWithMetadata(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "2026-03-01T12:00:00Z", entry.Metadata[links.MetadataCreated])
	})

	t.Run("generates code when slug is empty", func(t *testing.T) {
		s, _ := newTestStore(t)

		link, err := s.Shorten(ctx, testURL, "")

		require.NoError(t, err)
		assert.Len(t, string(link.Code), 8)
	})

	t.Run("taken slug conflicts and keeps existing mapping", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, err := s.Shorten(ctx, testURL, "abc")
		require.NoError(t, err)

		link, err := s.Shorten(ctx, "https://other.com", "abc")

		assert.Nil(t, link)
		require.ErrorIs(t, err, links.ErrConflict)

		got, err := s.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, testURL, got.URL)
	})

	t.Run("retries on generated collision", func(t *testing.T) {
		mem := kv.NewMemoryStore(nil)
		s := links.NewStore(mem, sequence("dup", "fresh"), nil)
		_, err := s.Shorten(ctx, testURL, "dup")
		require.NoError(t, err)

		link, err := s.Shorten(ctx, testURL, "")

		require.NoError(t, err)
		assert.Equal(t, links.Code("fresh"), link.Code)
	})

	t.Run("slug owned by a fixed route is rejected", func(t *testing.T) {
		s, _ := newTestStore(t)

		link, err := s.Shorten(ctx, testURL, "health")

		assert.Nil(t, link)
		assert.ErrorIs(t, err, links.ErrInvalidSlug)
	})

	t.Run("generated code owned by a fixed route is skipped", func(t *testing.T) {
		s := links.NewStore(kv.NewMemoryStore(nil), sequence("login", "fresh"), nil)

		link, err := s.Shorten(ctx, testURL, "")

		require.NoError(t, err)
		assert.Equal(t, links.Code("fresh"), link.Code)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		mem := kv.NewMemoryStore(nil)
		s := links.NewStore(mem, sequence("dup"), nil)
		_, _ = s.Shorten(ctx, testURL, "dup")

		link, err := s.Shorten(ctx, testURL, "")

		assert.Nil(t, link)
		assert.Error(t, err)
	})

	t.Run("rejects invalid url", func(t *testing.T) {
		s, _ := newTestStore(t)

		for _, raw := range []string{"", "   ", "not a url", "ftp://example.com", "https://"} {
			_, err := s.Shorten(ctx, raw, "")
			assert.ErrorIs(t, err, links.ErrInvalidURL, raw)
		}
	})

	t.Run("rejects invalid slug", func(t *testing.T) {
		s, _ := newTestStore(t)

		for _, slug := range []string{"session:abc", "a/b", "with space"} {
			_, err := s.Shorten(ctx, testURL, slug)
			assert.ErrorIs(t, err, links.ErrInvalidSlug, slug)
		}
	})

	t.Run("wraps store failure", func(t *testing.T) {
		s := links.NewStore(failingStore{}, sequence("x"), nil)

		_, err := s.Shorten(ctx, testURL, "abc")

		require.ErrorIs(t, err, errMock)
	})
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns link", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, _ = s.Shorten(ctx, testURL, "abc")

		link, err := s.Get(ctx, "abc")

		require.NoError(t, err)
		assert.Equal(t, testURL, link.URL)
		assert.Equal(t, testNow, link.CreatedAt)
	})

	t.Run("missing code is ErrNotFound", func(t *testing.T) {
		s, _ := newTestStore(t)

		_, err := s.Get(ctx, "missing")

		assert.ErrorIs(t, err, links.ErrNotFound)
	})

	t.Run("reserved keys never resolve", func(t *testing.T) {
		s, mem := newTestStore(t)
		_ = mem.Put(ctx, "session:tok", `{"expiresAt":"2030-01-01T00:00:00Z"}`)

		_, err := s.Get(ctx, "session:tok")

		assert.ErrorIs(t, err, links.ErrNotFound)
	})

	t.Run("record without metadata has zero created", func(t *testing.T) {
		s, mem := newTestStore(t)
		_ = mem.Put(ctx, "legacy", testURL)

		link, err := s.Get(ctx, "legacy")

		require.NoError(t, err)
		assert.True(t, link.CreatedAt.IsZero())
	})

	t.Run("wraps store failure", func(t *testing.T) {
		s := links.NewStore(failingStore{}, sequence("x"), nil)

		_, err := s.Get(ctx, "abc")

		require.ErrorIs(t, err, errMock)
		assert.NotErrorIs(t, err, links.ErrNotFound)
	})
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces url and preserves created", func(t *testing.T) {
		s, mem := newTestStore(t)
		_, _ = s.Shorten(ctx, testURL, "abc")

		link, err := s.Update(ctx, "abc", "https://new.com")

		require.NoError(t, err)
		assert.Equal(t, "https://new.com", link.URL)
		assert.Equal(t, testNow, link.CreatedAt)

		entry, _ := mem.GetWithMetadata(ctx, "abc")
		assert.Equal(t, "https://new.com", entry.Value)
		assert.Equal(t, "2026-03-01T12:00:00Z", entry.Metadata[links.MetadataCreated])
	})

	t.Run("missing code is ErrNotFound", func(t *testing.T) {
		s, _ := newTestStore(t)

		_, err := s.Update(ctx, "missing", "https://new.com")

		assert.ErrorIs(t, err, links.ErrNotFound)
	})

	t.Run("rejects invalid url", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, _ = s.Shorten(ctx, testURL, "abc")

		_, err := s.Update(ctx, "abc", "")

		assert.ErrorIs(t, err, links.ErrInvalidURL)
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes link", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, _ = s.Shorten(ctx, testURL, "abc")

		require.NoError(t, s.Delete(ctx, "abc"))

		_, err := s.Get(ctx, "abc")
		assert.ErrorIs(t, err, links.ErrNotFound)
	})

	t.Run("missing code is ErrNotFound", func(t *testing.T) {
		s, _ := newTestStore(t)

		assert.ErrorIs(t, s.Delete(ctx, "missing"), links.ErrNotFound)
	})

	t.Run("refuses reserved keys", func(t *testing.T) {
		s, mem := newTestStore(t)
		_ = mem.Put(ctx, "oauth:state", "{}")

		require.ErrorIs(t, s.Delete(ctx, "oauth:state"), links.ErrNotFound)

		_, err := mem.Get(ctx, "oauth:state")
		assert.NoError(t, err)
	})
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *links.Store {
		t.Helper()

		s, mem := newTestStore(t)
		_, _ = s.Shorten(ctx, "https://example.com/a", "alpha")
		_, _ = s.Shorten(ctx, "https://golang.org", "beta")
		_ = mem.Put(ctx, "session:tok", "{}")
		_ = mem.Put(ctx, "oauth:state", "{}")

		return s
	}

	t.Run("never includes reserved keys", func(t *testing.T) {
		s := seed(t)

		page, err := s.List(ctx, links.Query{})

		require.NoError(t, err)
		require.Len(t, page.Links, 2)
		assert.Equal(t, links.Code("alpha"), page.Links[0].Code)
		assert.Equal(t, links.Code("beta"), page.Links[1].Code)
		assert.ElementsMatch(t, []string{"session:tok", "oauth:state"}, page.Reserved)
		assert.True(t, page.Complete)
	})

	t.Run("search matches code or url case-insensitively", func(t *testing.T) {
		s := seed(t)

		byURL, err := s.List(ctx, links.Query{Search: "GOLANG"})
		require.NoError(t, err)
		require.Len(t, byURL.Links, 1)
		assert.Equal(t, links.Code("beta"), byURL.Links[0].Code)

		byCode, err := s.List(ctx, links.Query{Search: "alp"})
		require.NoError(t, err)
		require.Len(t, byCode.Links, 1)
		assert.Equal(t, links.Code("alpha"), byCode.Links[0].Code)
	})

	t.Run("passes cursor through", func(t *testing.T) {
		s := seed(t)

		page, err := s.List(ctx, links.Query{Limit: 1})

		require.NoError(t, err)
		assert.False(t, page.Complete)
		assert.Equal(t, "alpha", page.Cursor)
	})

	t.Run("wraps store failure", func(t *testing.T) {
		s := links.NewStore(failingStore{}, sequence("x"), nil)

		_, err := s.List(ctx, links.Query{})

		assert.ErrorIs(t, err, errMock)
	})
}
