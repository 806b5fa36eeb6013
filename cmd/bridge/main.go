// Package main provides the SCIM bridge entry point.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/idgate/scim-bridge/internal/api"
	"github.com/idgate/scim-bridge/internal/config"
	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/mapper"
	"github.com/idgate/scim-bridge/internal/patch"
	"github.com/idgate/scim-bridge/internal/reconcile"
	"github.com/idgate/scim-bridge/internal/service"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg := parseFlags()

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting SCIM bridge", "version", version, "listen_addr", cfg.ListenAddr, "store_url", cfg.StoreURL, "realm", cfg.StoreRealm)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	dir := directory.NewKeycloak(ctx, directory.KeycloakConfig{
		ServerURL:    cfg.StoreURL,
		Realm:        cfg.StoreRealm,
		ClientID:     cfg.StoreClientID,
		ClientSecret: cfg.StoreClientSecret,
	})

	mode := patch.Mode(cfg.PatchMode)
	rec := reconcile.New(dir, logger)
	engine := patch.NewEngine(dir, rec, logger)
	userMapper := mapper.NewUserMapper(dir, cfg.BaseURL, logger)
	groupMapper := mapper.NewGroupMapper(cfg.BaseURL, logger)

	users := service.NewUserService(dir, userMapper, engine, mode, logger)
	groups := service.NewGroupService(dir, groupMapper, engine, rec, mode, logger)

	authenticator, err := api.NewAuthenticator(ctx, api.AuthConfig{
		StaticTokens: cfg.StaticTokens,
		OIDCIssuer:   cfg.OIDCIssuer,
		OIDCAudience: cfg.OIDCAudience,
		RateLimit:    cfg.RateLimit,
		RateWindow:   cfg.RateWindow,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize authenticator", "error", err)
		os.Exit(1)
	}
	defer authenticator.Close()

	handler := api.NewHandler(users, groups, authenticator, logger)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           securityHeadersMiddleware(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("SCIM bridge listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("SCIM bridge stopped")
}

func parseFlags() *config.Config {
	cfg := config.FromEnv()

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Listen address")
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Externally visible base URL")
	flag.StringVar(&cfg.StoreURL, "store-url", cfg.StoreURL, "Identity store base URL")
	flag.StringVar(&cfg.StoreRealm, "store-realm", cfg.StoreRealm, "Identity store realm")
	flag.StringVar(&cfg.StoreClientID, "store-client-id", cfg.StoreClientID, "Identity store service account client id")
	flag.StringVar(&cfg.StoreClientSecret, "store-client-secret", cfg.StoreClientSecret, "Identity store service account client secret")
	flag.StringVar(&cfg.OIDCIssuer, "oidc-issuer", cfg.OIDCIssuer, "OIDC issuer for JWT bearer auth")
	flag.StringVar(&cfg.OIDCAudience, "oidc-audience", cfg.OIDCAudience, "Required JWT audience")
	flag.StringVar(&cfg.PatchMode, "patch-mode", cfg.PatchMode, "Patch mode (lenient, strict)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")

	flag.Parse()

	return cfg
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// securityHeadersMiddleware adds standard security headers to all responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
