// The reference replyforge server: identity-resolving middleware, the
// drafts API, and a Prometheus metrics endpoint on a chi router.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	httpmw "github.com/replyforge/replyforge/middleware/http"
	"github.com/replyforge/replyforge/pkg/api"
	"github.com/replyforge/replyforge/pkg/drafts"
	"github.com/replyforge/replyforge/pkg/drafts/openai"
	"github.com/replyforge/replyforge/pkg/identity"
	"github.com/replyforge/replyforge/pkg/quota"
	quotazerolog "github.com/replyforge/replyforge/pkg/quota/logger/zerolog"
	prommetrics "github.com/replyforge/replyforge/pkg/quota/metrics/prometheus"
	"github.com/replyforge/replyforge/storage/memory"
	"github.com/replyforge/replyforge/storage/postgres"
	redisstore "github.com/replyforge/replyforge/storage/redis"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := Load()

	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Environment == "dev" {
		zl = zl.Output(zerolog.NewConsoleWriter()).Level(zerolog.DebugLevel)
	} else {
		zl = zl.Level(zerolog.InfoLevel)
	}
	logger := quotazerolog.NewLogger(zl)

	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET is required")
	}

	ctx := context.Background()

	// Stores. Memory covers everything in development; production wires
	// Redis for the anonymous counter and Postgres for users and profiles.
	mem := memory.New()

	var anonStore quota.AnonymousStore = mem
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		store, err := redisstore.New(client, redisstore.DefaultConfig())
		if err != nil {
			log.Fatalf("Failed to create redis store: %v", err)
		}
		anonStore = store
		logger.Info("anonymous counters on redis", quota.Field{Key: "addr", Value: cfg.RedisAddr})
	}

	var (
		userStore    quota.UserStore    = mem
		profileStore quota.ProfileStore = mem
		pgStore      *postgres.Store
	)
	if cfg.DatabaseURL != "" {
		pgConfig := postgres.DefaultConfig()
		pgConfig.ConnectionString = cfg.DatabaseURL
		store, err := postgres.New(ctx, pgConfig)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
		pgStore = store
		userStore = store
		profileStore = store
		logger.Info("user counters on postgres")
	} else {
		logger.Warn("no DATABASE_URL, user data is in process memory")
	}
	if pgStore != nil {
		defer pgStore.Close()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	metrics := prommetrics.NewMetrics(registry, "replyforge")

	ledger, err := quota.NewLedger(anonStore, userStore, quota.Config{
		Limits:  quota.DefaultLimits(),
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		log.Fatalf("Failed to create ledger: %v", err)
	}

	// Identity
	signer, err := identity.NewSessionSigner([]byte(cfg.SessionSecret))
	if err != nil {
		log.Fatalf("Failed to create session signer: %v", err)
	}

	var verifier identity.SessionVerifier
	if cfg.AuthJWKSURL != "" {
		v, err := identity.NewJWKSVerifier(ctx, cfg.AuthJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create session verifier: %v", err)
		}
		verifier = v
	} else {
		logger.Warn("no AUTH_JWKS_URL, all callers resolve as anonymous")
	}

	resolver, err := identity.NewResolver(verifier, signer, profileStore, logger)
	if err != nil {
		log.Fatalf("Failed to create resolver: %v", err)
	}

	// Completion provider
	var completer drafts.Completer
	if cfg.OpenAIAPIKey != "" {
		client, err := openai.New(openai.Config{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		})
		if err != nil {
			log.Fatalf("Failed to create completion client: %v", err)
		}
		completer = client
	} else {
		logger.Warn("no OPENAI_API_KEY, generation requests will fail with MISSING_API_KEY")
	}

	service, err := drafts.NewService(ledger, completer, drafts.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	handler, err := api.NewHandler(api.Config{
		Service:     service,
		GetIdentity: httpmw.FromRequest,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("Failed to create handler: %v", err)
	}

	identityMW := httpmw.Middleware(httpmw.Config{
		Resolver:      resolver,
		SecureCookies: cfg.Environment != "dev",
	})

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(identityMW)
		r.Post("/api/drafts", handler.GenerateDrafts)
		r.Get("/api/quota", handler.GetQuota)
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server starting",
		quota.Field{Key: "port", Value: cfg.Port},
		quota.Field{Key: "environment", Value: cfg.Environment},
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
