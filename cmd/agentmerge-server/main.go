// Command agentmerge-server exposes the conflict resolver over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kilupskalvis/agentmerge/internal/config"
	"github.com/kilupskalvis/agentmerge/internal/core"
	"github.com/kilupskalvis/agentmerge/internal/server"
	"github.com/kilupskalvis/agentmerge/internal/store"
)

func main() {
	listen := flag.String("listen", envOrDefault("AGENTMERGE_LISTEN", "0.0.0.0:8730"), "Listen address")
	dataDir := flag.String("data-dir", envOrDefault("AGENTMERGE_DATA_DIR", "/var/lib/agentmerge"), "Data directory")
	token := flag.String("token", os.Getenv("AGENTMERGE_TOKEN"), "Bearer token required on API routes")
	backend := flag.String("backend", envOrDefault("AGENTMERGE_BACKEND", store.BackendBbolt), "State backend (bbolt, sqlite)")
	logLevel := flag.String("log-level", envOrDefault("AGENTMERGE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("AGENTMERGE_LOG_FORMAT", "json"), "Log format (json, text)")
	tlsCert := flag.String("tls-cert", os.Getenv("AGENTMERGE_TLS_CERT"), "TLS certificate file")
	tlsKey := flag.String("tls-key", os.Getenv("AGENTMERGE_TLS_KEY"), "TLS key file")
	webhookURLs := flag.String("webhook-urls", os.Getenv("AGENTMERGE_WEBHOOK_URLS"), "Comma-separated webhook URLs to notify on conflict events")
	rpm := flag.Int("requests-per-minute", envInt("AGENTMERGE_REQUESTS_PER_MINUTE", 600), "Per-client request limit, 0 disables")
	retention := flag.Duration("rollback-retention", envDuration("AGENTMERGE_ROLLBACK_RETENTION", core.DefaultRollbackRetention), "How long a resolution can be rolled back")
	ignoreWS := flag.Bool("ignore-whitespace", envBool("AGENTMERGE_IGNORE_WHITESPACE", false), "Treat lines differing only in whitespace as equal")
	autoSimple := flag.Bool("auto-resolve-simple", envBool("AGENTMERGE_AUTO_RESOLVE_SIMPLE", true), "Allow automatic resolution of simple conflicts")
	flag.Parse()

	// Setup logger
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// Validate data dir
	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "error", err, "path", *dataDir)
		os.Exit(1)
	}

	statePath := filepath.Join(*dataDir, config.StateFile)
	st, err := store.Open(*backend, statePath)
	if err != nil {
		logger.Error("failed to open state store", "error", err, "backend", *backend, "path", statePath)
		os.Exit(1)
	}
	defer st.Close()

	engineOpts := core.DefaultOptions()
	engineOpts.IgnoreWhitespace = *ignoreWS
	engineOpts.AutoResolveSimple = *autoSimple
	engineOpts.RollbackRetention = *retention
	engineOpts.Logger = logger

	resolver, err := core.New(context.Background(), engineOpts, st)
	if err != nil {
		logger.Error("failed to load resolver state", "error", err)
		os.Exit(1)
	}
	effective := resolver.Options()
	logger.Info("resolver ready",
		"ignore_whitespace", effective.IgnoreWhitespace,
		"auto_resolve_simple", effective.AutoResolveSimple,
		"rollback_retention", effective.RollbackRetention.String(),
	)

	// Server config
	cfg := server.DefaultConfig()
	cfg.Token = *token
	cfg.RequestsPerMinute = *rpm
	if *token == "" {
		logger.Warn("no token configured, API is unauthenticated")
	}

	// Webhooks
	if *webhookURLs != "" {
		var trimmed []string
		for _, u := range strings.Split(*webhookURLs, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				trimmed = append(trimmed, u)
			}
		}
		if len(trimmed) > 0 {
			cfg.Webhooks = server.NewWebhookNotifier(&server.WebhookConfig{URLs: trimmed}, logger)
			logger.Info("webhooks configured", "count", len(trimmed))
		}
	}

	// Handler
	h, handlerCleanup := server.Handler(resolver, cfg, logger)
	defer handlerCleanup()

	// HTTP server
	srv := &http.Server{
		Addr:         *listen,
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return context.Background() },
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting agentmerge-server", "listen", *listen, "data_dir", *dataDir, "backend", *backend)
		var err error
		if *tlsCert != "" && *tlsKey != "" {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if n, err := resolver.PurgeExpiredRollbacks(ctx); err != nil {
		logger.Error("purge expired rollbacks", "error", err)
	} else if n > 0 {
		logger.Info("purged expired rollbacks", "count", n)
	}
	logger.Info("server stopped")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultVal
}
