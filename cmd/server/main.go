// Notes server entry point. Wires config, database, services, and the web
// UI together and runs an HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slugnotes/slugnotes/internal/auth"
	"github.com/slugnotes/slugnotes/internal/config"
	"github.com/slugnotes/slugnotes/internal/db"
	"github.com/slugnotes/slugnotes/internal/notes"
	"github.com/slugnotes/slugnotes/internal/obs"
	"github.com/slugnotes/slugnotes/internal/ratelimit"
	"github.com/slugnotes/slugnotes/internal/web"
)

func main() {
	configPath, addr, dataDir := config.ParseFlags()
	cfg := config.MustLoadConfig(configPath, addr, dataDir)
	cfg.PrintStartupSummary()

	obs.Init()
	logger := obs.Pkg("main")

	appDB, err := db.Open(cfg.DataDir, cfg.DBKey)
	if err != nil {
		logger.Error("failed to open database", "data_dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	defer appDB.Close()

	renderer, err := web.NewRenderer()
	if err != nil {
		logger.Error("failed to load templates", "err", err)
		os.Exit(1)
	}

	notesService := notes.NewService(appDB)
	userService := auth.NewUserService(appDB)
	sessionService := auth.NewSessionService(appDB, cfg.SessionDuration)
	sessionService.SetSecure(cfg.RequireSecureCookies())
	authMiddleware := auth.NewMiddleware(sessionService)

	handler := web.NewWebHandler(renderer, notesService, userService, sessionService, cfg.BaseURL)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, authMiddleware)

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	// Rate limiting runs outside the auth middleware, so it resolves the
	// session itself to pick the per-user bucket.
	sessionUserID := func(r *http.Request) string {
		sessionID, err := auth.GetFromRequest(r)
		if err != nil {
			return ""
		}
		userID, err := sessionService.Validate(r.Context(), sessionID)
		if err != nil {
			return ""
		}
		return userID
	}

	var root http.Handler = mux
	root = ratelimit.Middleware(limiter, sessionUserID)(root)
	root = obs.AccessLogMiddleware("web", root)
	root = obs.RequestContextMiddleware(root)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessionCleanupLoop(ctx, sessionService)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}
}

// sessionCleanupLoop periodically purges expired sessions until ctx is done.
func sessionCleanupLoop(ctx context.Context, sessions *auth.SessionService) {
	logger := obs.Pkg("main")
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.Cleanup(ctx); err != nil {
				logger.Warn("session cleanup failed", "err", err)
			}
		}
	}
}
