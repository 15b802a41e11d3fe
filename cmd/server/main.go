package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/andyleap/authd/internal/api"
	"github.com/andyleap/authd/internal/oauth"
	"github.com/andyleap/authd/internal/registry"
	"github.com/andyleap/authd/internal/storage"
	"github.com/andyleap/authd/internal/token"
	"github.com/andyleap/authd/internal/ui"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Load the clients/users registry
	fileRegistry, err := registry.LoadFileRegistry(cfg.RegistryPath)
	if err != nil {
		slog.Error("Failed to load registry", "error", err, "path", cfg.RegistryPath)
		os.Exit(1)
	}
	slog.Info("Loaded registry", "path", cfg.RegistryPath)

	// Setup the user directory
	var authenticator registry.Authenticator
	switch cfg.UserBackend {
	case "s3":
		s3Directory, err := registry.NewS3UserDirectory(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.UseSSL)
		if err != nil {
			slog.Error("Failed to create S3 user directory", "error", err)
			os.Exit(1)
		}
		authenticator = s3Directory
		slog.Info("Using S3 user directory", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
	case "file":
		authenticator = fileRegistry
		slog.Info("Using registry file users")
	default:
		slog.Error("Invalid USER_BACKEND", "mode", cfg.UserBackend, "valid_modes", []string{"file", "s3"})
		os.Exit(1)
	}

	// Redis is shared between the session and credential stores when
	// either runs on it.
	var redisClient *redis.Client
	needRedis := cfg.SessionMode == "redis" || cfg.CredentialMode == "redis"
	if needRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
	}

	// Setup session storage
	var sessionStore storage.SessionStore
	switch cfg.SessionMode {
	case "redis":
		sessionStore = storage.NewRedisSessionStore(redisClient)
		slog.Info("Using Redis sessions", "addr", cfg.Redis.Addr)
	case "memory":
		sessionStore = storage.NewMemorySessionStore()
		slog.Warn("Using in-memory sessions (not persistent)")
	default:
		slog.Error("Invalid SESSION_MODE", "mode", cfg.SessionMode, "valid_modes", []string{"redis", "memory"})
		os.Exit(1)
	}

	// Setup credential storage: one logical store per credential kind
	var codeStore, tokenStore storage.CredentialStore
	switch cfg.CredentialMode {
	case "redis":
		codeStore = storage.NewRedisCredentialStore(redisClient, "authcode")
		tokenStore = storage.NewRedisCredentialStore(redisClient, "accesstoken")
		slog.Info("Using Redis credential storage", "addr", cfg.Redis.Addr)
	case "memory":
		codeStore = storage.NewMemoryCredentialStore()
		tokenStore = storage.NewMemoryCredentialStore()
		slog.Warn("Using in-memory credential storage (not persistent)")
	default:
		slog.Error("Invalid CREDENTIAL_MODE", "mode", cfg.CredentialMode, "valid_modes", []string{"redis", "memory"})
		os.Exit(1)
	}

	// Setup services
	generator := token.NewGenerator()
	generator.CodeBytes = cfg.CodeBytes
	generator.TokenBytes = cfg.TokenBytes

	oauthService := oauth.NewService(codeStore, tokenStore, generator, fileRegistry, authenticator, cfg.CodeTTL)

	renderer, err := ui.NewRenderer()
	if err != nil {
		slog.Error("Failed to create renderer", "error", err)
		os.Exit(1)
	}

	oauthHandlers := api.NewOAuthHandlers(oauthService, sessionStore, renderer, cfg.SessionTTL)
	tokenHandlers := api.NewTokenHandlers(oauthService)

	// Setup routes
	mux := http.NewServeMux()

	mux.HandleFunc("GET /authorize", oauthHandlers.AuthorizeHandler)
	mux.HandleFunc("GET /authorize/login", oauthHandlers.LoginPageHandler)
	mux.HandleFunc("POST /authorize/login", oauthHandlers.LoginSubmitHandler)
	mux.HandleFunc("GET /authorize/consent", oauthHandlers.ConsentPageHandler)
	mux.HandleFunc("POST /authorize/consent", oauthHandlers.ConsentSubmitHandler)
	mux.HandleFunc("POST /token", tokenHandlers.TokenHandler)
	mux.HandleFunc("GET /health", api.HealthHandler)

	// Apply middleware
	handler := api.LoggingMiddleware(api.CORSMiddleware(mux))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	fmt.Printf("OAuth2 authorization server starting on http://localhost:%s\n", cfg.Port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /authorize         - start the authorization flow")
	fmt.Println("  POST /token             - token exchange")
	fmt.Println("  GET  /health            - health check")
	fmt.Printf("Example: http://localhost:%s/authorize?response_type=code&client_id=123&redirect_uri=http://localhost:3000/callback&state=xyz\n", cfg.Port)

	if err := server.ListenAndServe(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
