package container

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jaevor/go-nanoid"
	"github.com/samber/do"
	"github.com/serroba/linkgate/internal/audit"
	"github.com/serroba/linkgate/internal/auth"
	"github.com/serroba/linkgate/internal/clock"
	"github.com/serroba/linkgate/internal/handlers"
	"github.com/serroba/linkgate/internal/health"
	"github.com/serroba/linkgate/internal/kv"
	"github.com/serroba/linkgate/internal/links"
	"github.com/serroba/linkgate/internal/messaging"
	"github.com/serroba/linkgate/internal/middleware"
	"github.com/serroba/linkgate/internal/oauth"
	"github.com/serroba/linkgate/internal/ratelimit"
	"github.com/serroba/linkgate/internal/session"
	"github.com/serroba/linkgate/internal/sweep"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// consumerGroup names the Redis stream consumer group shared by every
// process consuming events.
const consumerGroup = "linkgate"

// StorePackage provides the kv.Store selected by Options.StoreBackend.
func StorePackage(i *do.Injector) {
	do.ProvideValue[clock.Clock](i, clock.Real{})

	do.Provide(i, func(i *do.Injector) (kv.Store, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.StoreBackend {
		case BackendMemory:
			return kv.NewMemoryStore(do.MustInvoke[clock.Clock](i)), nil
		case BackendRedis:
			return kv.NewRedisStore(do.MustInvoke[*RedisClient](i).Client, opts.RedisNamespace), nil
		case BackendPostgres:
			pool, err := do.Invoke[*PostgresPool](i)
			if err != nil {
				return nil, err
			}

			store := kv.NewPostgresStore(pool.Pool)
			if err := store.EnsureSchema(context.Background()); err != nil {
				return nil, fmt.Errorf("kv schema: %w", err)
			}

			return store, nil
		default:
			return nil, fmt.Errorf("unknown store backend %q", opts.StoreBackend)
		}
	})

	do.Provide(i, func(i *do.Injector) (*links.Store, error) {
		opts := do.MustInvoke[*Options](i)

		generate, err := nanoid.Standard(opts.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("code generator: %w", err)
		}

		return links.NewStore(
			do.MustInvoke[kv.Store](i),
			generate,
			do.MustInvoke[clock.Clock](i),
			session.KeyPrefix,
			oauth.KeyPrefix,
		), nil
	})
}

// MessagingPackage provides the event transport and the emitters built on it.
func MessagingPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.Transport, error) {
		opts := do.MustInvoke[*Options](i)
		logger := messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i))

		switch opts.EventsBackend {
		case BackendMemory:
			return messaging.NewMemoryTransport(logger), nil
		case BackendRedis:
			return messaging.NewRedisTransport(do.MustInvoke[*RedisClient](i).Client, consumerGroup, logger)
		default:
			return nil, fmt.Errorf("unknown events backend %q", opts.EventsBackend)
		}
	})

	do.Provide(i, func(i *do.Injector) (messaging.Emit[sweep.Eviction], error) {
		transport := do.MustInvoke[*messaging.Transport](i)
		publish := messaging.NewPublishFunc[sweep.Eviction](transport.Publisher, sweep.TopicEvictions)

		return messaging.FireAndForget(publish, do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(i, func(i *do.Injector) (messaging.Emit[audit.LinkEvent], error) {
		transport := do.MustInvoke[*messaging.Transport](i)
		publish := messaging.NewPublishFunc[audit.LinkEvent](transport.Publisher, audit.Topic)

		return messaging.FireAndForget(publish, do.MustInvoke[*zap.Logger](i)), nil
	})
}

// AuthPackage provides sessions, the sweep, the login flows and the gate.
// Misconfiguration for the selected auth mode fails here rather than on
// the first request.
func AuthPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*sweep.Scheduler, error) {
		return sweep.NewScheduler(
			do.MustInvoke[messaging.Emit[sweep.Eviction]](i),
			do.MustInvoke[clock.Clock](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*sweep.Sweeper, error) {
		return sweep.NewSweeper(
			do.MustInvoke[kv.Store](i),
			do.MustInvoke[*sweep.Scheduler](i),
			do.MustInvoke[clock.Clock](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*session.Manager, error) {
		return session.NewManager(
			do.MustInvoke[kv.Store](i),
			do.MustInvoke[*sweep.Scheduler](i),
			do.MustInvoke[*zap.Logger](i),
			session.WithClock(do.MustInvoke[clock.Clock](i)),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (auth.Mode, error) {
		opts := do.MustInvoke[*Options](i)

		mode, err := auth.ParseMode(opts.AuthMode)
		if err != nil {
			return "", err
		}

		switch mode {
		case auth.ModePassword:
			if opts.Password == "" {
				return "", fmt.Errorf("auth mode %q requires a password", mode)
			}
		case auth.ModeOAuth:
			if opts.ProviderURL == "" || opts.ClientID == "" {
				return "", fmt.Errorf("auth mode %q requires a provider url and client id", mode)
			}
		case auth.ModeNone:
		}

		return mode, nil
	})

	do.Provide(i, func(i *do.Injector) (*oauth.Flow, error) {
		opts := do.MustInvoke[*Options](i)

		return oauth.NewFlow(oauth.Config{
			ProviderURL:     opts.ProviderURL,
			AuthorizePath:   opts.AuthorizePath,
			TokenPath:       opts.TokenPath,
			ClientID:        opts.ClientID,
			ClientSecret:    opts.ClientSecret,
			PublicHost:      opts.PublicHost,
			Scopes:          opts.scopes(),
			AllowedRole:     opts.AllowedRole,
			ExchangeTimeout: opts.exchangeTimeout(),
		}, do.MustInvoke[kv.Store](i), do.MustInvoke[*session.Manager](i), do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(i, func(i *do.Injector) (*auth.Gate, error) {
		mode, err := do.Invoke[auth.Mode](i)
		if err != nil {
			return nil, err
		}

		return auth.NewGate(
			mode,
			do.MustInvoke[*Options](i).APIKey,
			auth.NewRouteTable(auth.DefaultPublicRoutes()...),
			do.MustInvoke[*session.Manager](i),
		), nil
	})
}

// HTTPPackage provides the router and the huma API with every route and
// middleware registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()

		if origins := do.MustInvoke[*Options](i).corsOrigins(); len(origins) > 0 {
			router.Use(cors.Handler(cors.Options{
				AllowedOrigins: origins,
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
				ExposedHeaders: []string{"Location", "Retry-After"},
				MaxAge:         300,
			}))
		}

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (*middleware.Proxies, error) {
		return middleware.NewProxies(do.MustInvoke[*Options](i).trustedProxies())
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.Limiter, error) {
		if do.MustInvoke[*Options](i).StoreBackend == BackendRedis {
			return ratelimit.NewLimiter(ratelimit.NewRedisCounter(do.MustInvoke[*RedisClient](i).Client)), nil
		}

		return ratelimit.NewLimiter(ratelimit.NewMemoryCounter(do.MustInvoke[clock.Clock](i))), nil
	})

	do.Provide(i, func(i *do.Injector) (*health.Handler, error) {
		opts := do.MustInvoke[*Options](i)

		store, ok := do.MustInvoke[kv.Store](i).(kv.Pinger)
		if !ok {
			return nil, fmt.Errorf("store backend %q has no health check", opts.StoreBackend)
		}

		var events health.Checker

		if opts.EventsBackend == BackendRedis {
			events = health.NewRedisChecker(do.MustInvoke[*RedisClient](i).Client)
		}

		return health.NewHandler(store, events), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		huma.NewError = handlers.NewError

		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)

		gate, err := do.Invoke[*auth.Gate](i)
		if err != nil {
			return nil, err
		}

		authH, err := newAuthHandler(i, gate.Mode())
		if err != nil {
			return nil, err
		}

		linkH := handlers.NewLinkHandler(
			do.MustInvoke[*links.Store](i),
			do.MustInvoke[*sweep.Sweeper](i),
			do.MustInvoke[messaging.Emit[audit.LinkEvent]](i),
			do.MustInvoke[clock.Clock](i),
			logger,
		)

		proxies, err := do.Invoke[*middleware.Proxies](i)
		if err != nil {
			return nil, err
		}

		api := humachi.New(router, apiConfig())
		api.UseMiddleware(
			middleware.RequestMeta(api, proxies),
			middleware.RateLimit(api, do.MustInvoke[*ratelimit.Limiter](i), proxies, logger),
			middleware.Gate(api, gate, logger),
		)

		health.RegisterRoutes(api, do.MustInvoke[*health.Handler](i))
		handlers.RegisterRoutes(api, linkH, authH)

		return api, nil
	})
}

func newAuthHandler(i *do.Injector, mode auth.Mode) (*handlers.AuthHandler, error) {
	var (
		flow     handlers.LoginFlow
		password *auth.PasswordVerifier
	)

	switch mode {
	case auth.ModeOAuth:
		f, err := do.Invoke[*oauth.Flow](i)
		if err != nil {
			return nil, err
		}

		flow = f
	case auth.ModePassword:
		password = auth.NewPasswordVerifier(do.MustInvoke[*Options](i).Password)
	case auth.ModeNone:
	}

	return handlers.NewAuthHandler(
		mode,
		flow,
		do.MustInvoke[*session.Manager](i),
		password,
		do.MustInvoke[*zap.Logger](i),
	), nil
}

// apiConfig moves the generated docs under /api so they cannot shadow a
// short code. The schema link hook is dropped so bodies stay {"error": ...}.
func apiConfig() huma.Config {
	config := huma.DefaultConfig("Linkgate", "1.0.0")
	config.CreateHooks = nil
	config.DocsPath = "/api/docs"
	config.OpenAPIPath = "/api/openapi"
	config.SchemasPath = "/api/schemas"

	return config
}

// ConsumerGroupPackage provides the consumers for eviction and audit events.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (audit.Sink, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		if do.MustInvoke[*Options](i).StoreBackend != BackendPostgres {
			return audit.NewLogSink(logger), nil
		}

		pool, err := do.Invoke[*PostgresPool](i)
		if err != nil {
			return nil, err
		}

		sink := audit.NewPostgresSink(pool.Pool)
		if err := sink.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("audit schema: %w", err)
		}

		return sink, nil
	})

	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		transport := do.MustInvoke[*messaging.Transport](i)
		evictor := sweep.NewEvictor(do.MustInvoke[kv.Store](i), logger)
		sink := do.MustInvoke[audit.Sink](i)

		return messaging.NewConsumerGroup(logger,
			messaging.NewConsumer[sweep.Eviction](transport.Subscriber, sweep.TopicEvictions, evictor.Handle, logger),
			messaging.NewConsumer[audit.LinkEvent](transport.Subscriber, audit.Topic, sink.Record, logger),
		), nil
	})
}

// Register installs every package. options must already be provided.
func Register(i *do.Injector) {
	LoggerPackage(i)
	RedisPackage(i)
	PostgresPackage(i)
	StorePackage(i)
	MessagingPackage(i)
	AuthPackage(i)
	HTTPPackage(i)
	ConsumerGroupPackage(i)
}
