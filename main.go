package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/vellumhq/vellum/internal/api"
	"github.com/vellumhq/vellum/internal/auth"
	"github.com/vellumhq/vellum/internal/cache"
	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/db"
	"github.com/vellumhq/vellum/internal/deploy"
	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/gitremote"
	"github.com/vellumhq/vellum/internal/logger"
	"github.com/vellumhq/vellum/internal/mirror"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/publish"
	"github.com/vellumhq/vellum/internal/render"
	"github.com/vellumhq/vellum/internal/routes"
	"github.com/vellumhq/vellum/internal/session"
	"github.com/vellumhq/vellum/internal/sse"
	"github.com/vellumhq/vellum/internal/user"
)

var mainLogger zerolog.Logger

var clients = sse.NewSSEClients()

func main() {
	// The log level lives in the config file, so bootstrap with the default
	// level, load the config, then rebuild at the configured level.
	mainLogger = logger.New(config.DefaultLoggingLevel, config.DefaultLoggingFormat)
	config.SetLogger(mainLogger)

	if err := godotenv.Load(); err != nil {
		mainLogger.Info().Msg("No .env file found")
	}

	configPath := os.Getenv("VELLUM_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	if err := config.LoadConfig(configPath); err != nil {
		mainLogger.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}
	cfg := config.AppConfig

	mainLogger = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	applyLoggers(mainLogger)

	cache.SetRenderedCapacity(cfg.Content.CacheEntries)

	database := db.NewSQLite(cfg.Database.Path)
	if err := database.InitDB(); err != nil {
		mainLogger.Fatal().Msgf(config.ErrInitializeDatabaseFmt, err)
	}
	defer database.Close()

	var target deploy.Target
	if cfg.Features.Deploy.Enabled && cfg.Deploy.Bucket != "" {
		s3Target, err := deploy.NewS3Target(
			os.Getenv("S3_ACCESS_KEY_ID"),
			os.Getenv("S3_SECRET_ACCESS_KEY"),
			cfg.Deploy.Endpoint,
			cfg.Deploy.Bucket,
			cfg.Deploy.Prefix,
		)
		if err != nil {
			mainLogger.Fatal().Err(err).Msg("Failed to initialize deploy target")
		}
		target = s3Target
	}

	token := os.Getenv("GIT_REMOTE_TOKEN")
	if token == "" {
		mainLogger.Warn().Msg("GIT_REMOTE_TOKEN is not set; remote calls will be unauthenticated")
	}

	manager := session.NewManager(session.ManagerConfig{
		NewClient: func(repo model.RepoID) gitremote.Client {
			return gitremote.NewGitHub(
				cfg.Remote.APIBase,
				repo,
				token,
				time.Duration(cfg.Remote.TimeoutSeconds)*time.Second,
			)
		},
		Store:         draft.NewSQLiteStore(database),
		Events:        clients,
		Target:        target,
		DefaultBranch: cfg.Remote.DefaultBranch,
		Deferred:      cfg.Publish.DeferredDefault,
		BatchSize:     cfg.Publish.BlobBatchSize,
		Layout: mirror.Layout{
			PostsDir:     cfg.Content.PostsDir,
			MediaDir:     cfg.Content.MediaDir,
			SettingsPath: cfg.Content.SettingsPath,
			CacheEntries: cfg.Content.CacheEntries,
		},
	})

	if cfg.Remote.Owner == "" || cfg.Remote.Repo == "" {
		mainLogger.Fatal().Msg("remote.owner and remote.repo must be configured")
	}
	repo := model.RepoID(cfg.Remote.Owner + "/" + cfg.Remote.Repo)

	go connectRepo(manager, repo)

	var provider auth.Provider
	if cfg.Features.Authentication.Enabled {
		switch cfg.Features.Authentication.Type {
		case "clerk":
			provider = auth.NewClerkProvider(os.Getenv("CLERK_API"), user.NewStore(database))
		default:
			ed25519Provider, err := auth.NewEd25519Provider(
				os.Getenv("ED25519_PUBKEY"),
				"Authorization",
				model.UserID("admin"),
			)
			if err != nil {
				mainLogger.Fatal().Msgf(config.ErrCreateProviderFmt, err)
			}
			provider = ed25519Provider
		}
	}

	handler := api.NewHandler(manager, repo, provider, clients)
	mux := newServerMux(handler, provider)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	mainLogger.Info().
		Str("addr", addr).
		Str("repo", string(repo)).
		Str("branch", cfg.Remote.DefaultBranch).
		Bool("deferred_publish", cfg.Publish.DeferredDefault).
		Msg("Starting Vellum")

	if err := http.ListenAndServe(addr, rootHandler(mux, provider)); err != nil {
		mainLogger.Fatal().Err(err).Msg("Server stopped")
	}
}

func applyLoggers(l zerolog.Logger) {
	api.SetLogger(l)
	auth.SetLogger(l)
	config.SetLogger(l)
	db.SetLogger(l)
	deploy.SetLogger(l)
	draft.SetLogger(l)
	gitremote.SetLogger(l)
	mirror.SetLogger(l)
	publish.SetLogger(l)
	render.SetLogger(l)
	session.SetLogger(l)
	user.SetLogger(l)
}

// newServerMux wires every route: the editor API, robots.txt and the auth
// endpoints for whichever provider is configured.
func newServerMux(handler *api.Handler, provider auth.Provider) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow:"))
	})

	handler.RegisterRoutes(mux)

	switch p := provider.(type) {
	case *auth.Ed25519Provider:
		auth.RegisterEd25519Routes(mux, p)
	case *auth.ClerkProvider:
		mux.HandleFunc(routes.UserWebhook, p.HandleUserWebhook)
	}

	return mux
}

// rootHandler assembles the middleware chain around the mux. robots.txt is
// served bare so crawlers never trip over the security headers.
func rootHandler(mux *http.ServeMux, provider auth.Provider) http.Handler {
	securedMux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			mux.ServeHTTP(w, r)
		} else {
			secureHeaders(mux.ServeHTTP)(w, r)
		}
	})

	var root http.Handler = securedMux
	if provider != nil {
		root = provider.Middleware()(root)
	}

	return cacheHeaders(root)
}

// connectRepo syncs the content repository in the background. Until the
// first sync succeeds the API answers 503, so failures retry forever.
func connectRepo(manager *session.Manager, repo model.RepoID) {
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		_, err := manager.Connect(ctx, repo)
		cancel()

		if err == nil {
			mainLogger.Info().Str("repo", string(repo)).Msg("Content repository connected")
			return
		}

		mainLogger.Error().Err(err).
			Str("repo", string(repo)).
			Int("attempt", attempt).
			Msg("Failed to connect content repository")
		time.Sleep(15 * time.Second)
	}
}

// cacheHeaders marks every response as personal. Endpoints that serve
// immutable content override this with their own ETag.
func cacheHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")

		h.ServeHTTP(w, r)
	})
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}
