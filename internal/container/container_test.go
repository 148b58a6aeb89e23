package container_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/linkgate/internal/container"
	"github.com/serroba/linkgate/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() *container.Options {
	return &container.Options{
		LogFormat:       "console",
		LogLevel:        "error",
		StoreBackend:    container.BackendMemory,
		RedisNamespace:  "kv:",
		AuthMode:        "password",
		Password:        "hunter2",
		AuthorizePath:   "/auth",
		TokenPath:       "/token",
		Scopes:          "profile",
		AllowedRole:     "admin",
		ExchangeTimeout: 10,
		CodeLength:      8,
		EventsBackend:   container.BackendMemory,
		Consumers:       true,
	}
}

func newInjector(t *testing.T, opts *container.Options) *do.Injector {
	t.Helper()

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.Register(injector)

	t.Cleanup(func() {
		_ = injector.Shutdown()
	})

	return injector
}

func newServer(t *testing.T, opts *container.Options) http.Handler {
	t.Helper()

	injector := newInjector(t, opts)

	_, err := do.Invoke[huma.API](injector)
	require.NoError(t, err)

	return do.MustInvoke[*chi.Mux](injector)
}

func serve(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestServer_PasswordMode(t *testing.T) {
	h := newServer(t, testOptions())

	t.Run("protected routes reject anonymous callers", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/api/urls", "", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		rec := serve(t, h, http.MethodPost, "/api/login", "", `{"password":"nope"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("login then shorten then redirect", func(t *testing.T) {
		rec := serve(t, h, http.MethodPost, "/api/login", "", `{"password":"hunter2"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var login struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
		require.NotEmpty(t, login.Token)

		rec = serve(t, h, http.MethodPost, "/api/shorten", login.Token, `{"url":"https://example.com/docs","slug":"docs"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = serve(t, h, http.MethodGet, "/docs", "", "")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://example.com/docs", rec.Header().Get("Location"))

		rec = serve(t, h, http.MethodGet, "/api/urls", login.Token, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"shortCode":"docs"`)
		assert.NotContains(t, rec.Body.String(), "session:")
	})

	t.Run("health is public", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/health", "", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"store":"healthy"`)
	})

	t.Run("docs live under api", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/api/openapi.json", "", "")

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServer_APIKey(t *testing.T) {
	opts := testOptions()
	opts.APIKey = "secret-key"
	h := newServer(t, opts)

	rec := serve(t, h, http.MethodPost, "/api/shorten", "secret-key", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(t, h, http.MethodPost, "/api/shorten", "wrong-key", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_NoneMode(t *testing.T) {
	opts := testOptions()
	opts.AuthMode = "none"
	h := newServer(t, opts)

	rec := serve(t, h, http.MethodGet, "/api/urls", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Misconfiguration(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*container.Options)
	}{
		{"unknown auth mode", func(o *container.Options) { o.AuthMode = "magic" }},
		{"password mode without password", func(o *container.Options) { o.Password = "" }},
		{"oauth mode without provider", func(o *container.Options) { o.AuthMode = "oauth" }},
		{"unknown store backend", func(o *container.Options) { o.StoreBackend = "etcd" }},
		{"unknown events backend", func(o *container.Options) { o.EventsBackend = "kafka" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(opts)

			_, err := do.Invoke[huma.API](newInjector(t, opts))

			assert.Error(t, err)
		})
	}
}

func TestConsumerGroup_MemoryTransport(t *testing.T) {
	injector := newInjector(t, testOptions())

	group, err := do.Invoke[*messaging.ConsumerGroup](injector)
	require.NoError(t, err)

	assert.Equal(t, 2, group.Len())
}

func TestServer_RedisBackendWiring(t *testing.T) {
	opts := testOptions()
	opts.StoreBackend = container.BackendRedis
	opts.RedisAddr = "127.0.0.1:1"

	injector := newInjector(t, opts)

	// Building the graph does not dial Redis.
	_, err := do.Invoke[huma.API](injector)
	require.NoError(t, err)

	client := do.MustInvoke[*container.RedisClient](injector)
	require.NotNil(t, client.Client)
}

func TestServer_ErrorBodies(t *testing.T) {
	opts := testOptions()
	opts.APIKey = "secret-key"
	h := newServer(t, opts)

	rec := serve(t, h, http.MethodPost, "/api/shorten", "secret-key", `{"url":"https://example.com","slug":"taken"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
	}{
		{"conflict", http.MethodPost, "/api/shorten", "secret-key", `{"url":"https://example.com","slug":"taken"}`, http.StatusConflict},
		{"malformed body", http.MethodPost, "/api/shorten", "secret-key", `{"url":`, http.StatusBadRequest},
		{"missing url", http.MethodPost, "/api/shorten", "secret-key", `{}`, http.StatusBadRequest},
		{"missing credentials", http.MethodGet, "/api/urls", "", "", http.StatusUnauthorized},
		{"route slug", http.MethodPost, "/api/shorten", "secret-key", `{"url":"https://example.com","slug":"login"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Len(t, body, 1, rec.Body.String())
			assert.Contains(t, body, "error")
		})
	}
}
