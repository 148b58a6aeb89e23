package oauth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/serroba/linkgate/internal/kv"
	"github.com/serroba/linkgate/internal/oauth"
	"github.com/serroba/linkgate/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// provider is a fake identity provider token endpoint.
type provider struct {
	mu       sync.Mutex
	status   int
	response map[string]any
	requests []url.Values
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	p.mu.Lock()
	p.requests = append(p.requests, r.PostForm)
	status, response := p.status, p.response
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func (p *provider) calls() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.requests
}

type fakeSessions struct {
	created []session.Payload
	err     error
}

func (f *fakeSessions) Create(_ context.Context, p session.Payload) (*session.Session, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.created = append(f.created, p)

	return &session.Session{Token: "tok", Role: p.Role, Me: p.Me, Profile: p.Profile}, nil
}

type fixture struct {
	flow     *oauth.Flow
	store    *kv.MemoryStore
	idp      *provider
	sessions *fakeSessions
}

func newFixture(t *testing.T, publicHost string) *fixture {
	t.Helper()

	idp := &provider{
		status: http.StatusOK,
		response: map[string]any{
			"access_token": "at",
			"token_type":   "Bearer",
			"me":           "https://me.example/",
			"role":         "admin",
			"profile":      map[string]any{"name": "Ada"},
		},
	}
	srv := httptest.NewServer(idp)
	t.Cleanup(srv.Close)

	store := kv.NewMemoryStore(nil)
	sessions := &fakeSessions{}

	flow := oauth.NewFlow(oauth.Config{
		ProviderURL:   srv.URL,
		AuthorizePath: "/auth",
		TokenPath:     "/token",
		ClientID:      "client-1",
		ClientSecret:  "secret-1",
		PublicHost:    publicHost,
		Scopes:        []string{"profile", "create"},
		AllowedRole:   "admin",
	}, store, sessions, zap.NewNop())

	return &fixture{flow: flow, store: store, idp: idp, sessions: sessions}
}

// initiate starts a login and returns the state and verifier it stored.
func (f *fixture) initiate(t *testing.T, origin string) (*url.URL, oauth.Transaction) {
	t.Helper()

	authURL, err := f.flow.Initiate(context.Background(), origin)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)

	raw, err := f.store.Get(context.Background(), "oauth:"+u.Query().Get("state"))
	require.NoError(t, err)

	var txn oauth.Transaction
	require.NoError(t, json.Unmarshal([]byte(raw), &txn))

	return u, txn
}

func markerOf(t *testing.T, err error) string {
	t.Helper()

	var cbErr *oauth.CallbackError
	require.ErrorAs(t, err, &cbErr)

	return cbErr.Marker
}

func TestFlow_Initiate(t *testing.T) {
	t.Run("builds provider authorization url", func(t *testing.T) {
		f := newFixture(t, "")

		u, txn := f.initiate(t, "https://short.example")
		q := u.Query()

		assert.Equal(t, "/auth", u.Path)
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "client-1", q.Get("client_id"))
		assert.Equal(t, "https://short.example/api/callback", q.Get("redirect_uri"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.Equal(t, "profile create", q.Get("scope"))
		assert.Len(t, q.Get("state"), 43)
		assert.Len(t, txn.CodeVerifier, 86)
		assert.NotEqual(t, txn.CodeVerifier, q.Get("code_challenge"))
	})

	t.Run("public host overrides request origin", func(t *testing.T) {
		f := newFixture(t, "https://public.example/")

		u, txn := f.initiate(t, "http://internal:8080")

		assert.Equal(t, "https://public.example/api/callback", u.Query().Get("redirect_uri"))
		assert.Equal(t, "https://public.example/api/callback", txn.RedirectURI)
	})
}

func TestFlow_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("creates session from provider identity", func(t *testing.T) {
		f := newFixture(t, "")
		u, txn := f.initiate(t, "https://short.example")
		state := u.Query().Get("state")

		s, err := f.flow.Complete(ctx, "the-code", state)

		require.NoError(t, err)
		assert.Equal(t, "tok", s.Token)
		require.Len(t, f.sessions.created, 1)
		assert.Equal(t, "https://me.example/", f.sessions.created[0].Me)
		assert.Equal(t, "admin", f.sessions.created[0].Role)
		assert.Equal(t, map[string]any{"name": "Ada"}, f.sessions.created[0].Profile)

		require.Len(t, f.idp.calls(), 1)
		form := f.idp.calls()[0]
		assert.Equal(t, "the-code", form.Get("code"))
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, txn.CodeVerifier, form.Get("code_verifier"))
		assert.Equal(t, "client-1", form.Get("client_id"))
		assert.Equal(t, "secret-1", form.Get("client_secret"))
		assert.Equal(t, "https://short.example/api/callback", form.Get("redirect_uri"))
	})

	t.Run("missing params never touch the store", func(t *testing.T) {
		f := newFixture(t, "")

		_, err := f.flow.Complete(ctx, "", "state")
		assert.Equal(t, oauth.MarkerMissingParams, markerOf(t, err))

		_, err = f.flow.Complete(ctx, "code", "")
		assert.Equal(t, oauth.MarkerMissingParams, markerOf(t, err))
		assert.Empty(t, f.idp.calls())
	})

	t.Run("unknown state never reaches provider", func(t *testing.T) {
		f := newFixture(t, "")

		_, err := f.flow.Complete(ctx, "code", "never-issued")

		assert.Equal(t, oauth.MarkerInvalidState, markerOf(t, err))
		assert.Empty(t, f.idp.calls())
	})

	t.Run("state is single use", func(t *testing.T) {
		f := newFixture(t, "")
		u, _ := f.initiate(t, "https://short.example")
		state := u.Query().Get("state")

		_, err := f.flow.Complete(ctx, "code", state)
		require.NoError(t, err)

		_, err = f.flow.Complete(ctx, "code", state)
		assert.Equal(t, oauth.MarkerInvalidState, markerOf(t, err))
		assert.Len(t, f.idp.calls(), 1)
	})

	t.Run("corrupt transaction is invalid state and removed", func(t *testing.T) {
		f := newFixture(t, "")
		_ = f.store.Put(ctx, "oauth:broken", "{{{")

		_, err := f.flow.Complete(ctx, "code", "broken")

		assert.Equal(t, oauth.MarkerInvalidState, markerOf(t, err))
		_, err = f.store.Get(ctx, "oauth:broken")
		assert.ErrorIs(t, err, kv.ErrNotFound)
		assert.Empty(t, f.idp.calls())
	})

	t.Run("transaction consumed even when exchange fails", func(t *testing.T) {
		f := newFixture(t, "")
		f.idp.status = http.StatusBadRequest
		f.idp.response = map[string]any{"error": "invalid_grant"}
		u, _ := f.initiate(t, "https://short.example")
		state := u.Query().Get("state")

		_, err := f.flow.Complete(ctx, "code", state)

		assert.Equal(t, oauth.MarkerTokenExchangeFailed, markerOf(t, err))
		_, err = f.store.Get(ctx, "oauth:"+state)
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("provider unreachable is unknown", func(t *testing.T) {
		store := kv.NewMemoryStore(nil)
		flow := oauth.NewFlow(oauth.Config{
			ProviderURL: "http://127.0.0.1:1",
			TokenPath:   "/token",
		}, store, &fakeSessions{}, zap.NewNop())

		authURL, err := flow.Initiate(ctx, "https://short.example")
		require.NoError(t, err)
		u, _ := url.Parse(authURL)

		_, err = flow.Complete(ctx, "code", u.Query().Get("state"))

		assert.Equal(t, oauth.MarkerUnknown, markerOf(t, err))
	})

	t.Run("missing role creates no session", func(t *testing.T) {
		f := newFixture(t, "")
		f.idp.response = map[string]any{"access_token": "at", "me": "https://me.example/"}
		u, _ := f.initiate(t, "https://short.example")

		_, err := f.flow.Complete(ctx, "code", u.Query().Get("state"))

		assert.Equal(t, oauth.MarkerUnauthorizedRole, markerOf(t, err))
		assert.Empty(t, f.sessions.created)
	})

	t.Run("non-admin role creates no session", func(t *testing.T) {
		f := newFixture(t, "")
		f.idp.response = map[string]any{"access_token": "at", "role": "viewer"}
		u, _ := f.initiate(t, "https://short.example")

		_, err := f.flow.Complete(ctx, "code", u.Query().Get("state"))

		assert.Equal(t, oauth.MarkerUnauthorizedRole, markerOf(t, err))
		assert.Empty(t, f.sessions.created)
	})

	t.Run("session store failure", func(t *testing.T) {
		f := newFixture(t, "")
		f.sessions.err = errors.New("store down")
		u, _ := f.initiate(t, "https://short.example")

		_, err := f.flow.Complete(ctx, "code", u.Query().Get("state"))

		assert.Equal(t, oauth.MarkerSessionFailed, markerOf(t, err))
	})
}

func TestFlow_RedirectURI(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, "https://a.example/api/callback", f.flow.RedirectURI("https://a.example/"))
}
