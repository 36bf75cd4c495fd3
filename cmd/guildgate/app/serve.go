// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guildgate/guildgate/pkg/config"
	"github.com/guildgate/guildgate/pkg/flow"
	"github.com/guildgate/guildgate/pkg/logger"
	"github.com/guildgate/guildgate/pkg/session"
	"github.com/guildgate/guildgate/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the login gate server",
	Long: `Start the guildgate HTTP server. The server guards every path except
the login endpoints; requests without an admitted session are redirected
to /login.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	// Write timeout must cover the provider round-trips a callback makes.
	serverWriteTimeout = 60 * time.Second
	serverIdleTimeout  = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8085", "Address to listen on")
	serveCmd.Flags().String("settings", "guildgate.yaml", "Path to the settings file")
	serveCmd.Flags().String("redis-addr", "", "Redis address; empty selects the in-memory store")
	serveCmd.Flags().String("redis-prefix", "guildgate:", "Prefix for Redis keys")
	serveCmd.Flags().Bool("secure-cookies", false, "Mark session cookies Secure (enable behind HTTPS)")

	for _, name := range []string{"address", "settings", "redis-addr", "redis-prefix", "secure-cookies"} {
		if err := viper.BindPFlag(name, serveCmd.Flags().Lookup(name)); err != nil {
			logger.Fatalf("Failed to bind %s flag: %v", name, err)
		}
	}
}

// homePage greets an admitted user; it exists so a bare deployment has
// something behind the gate to verify against.
var homePage = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Signed in as <b>{{.Username}}</b>{{if .Admin}} (admin){{end}}.</p>
<p><a href="/logout">Log out</a></p>
</body>
</html>
`))

func homeHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := flow.RecordFromContext(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = homePage.Execute(w, map[string]any{
		"Username": rec.User.Username,
		"Admin":    rec.Admin,
	})
}

func newStore(ctx context.Context) (store.Store, func(), error) {
	redisAddr := viper.GetString("redis-addr")
	if redisAddr == "" {
		logger.Info("Using in-memory session store")
		return store.NewMemoryStore(), func() {}, nil
	}

	rs, err := store.NewRedisStore(ctx, store.RedisConfig{
		Addr:      redisAddr,
		KeyPrefix: viper.GetString("redis-prefix"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", redisAddr, err)
	}
	logger.Infof("Using Redis session store at %s", redisAddr)
	return rs, func() { _ = rs.Close() }, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	// Re-initialize so --debug from the parsed flags takes effect.
	logger.Initialize()
	ctx := context.Background()

	address := viper.GetString("address")
	settingsPath := viper.GetString("settings")

	settings := config.NewFileProvider(settingsPath)
	if _, err := settings.Load(ctx); err != nil {
		return fmt.Errorf("settings check failed: %w", err)
	}
	logger.Infof("Settings loaded from %s", settingsPath)

	st, closeStore, err := newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var sessionOpts []session.CookieOption
	if viper.GetBool("secure-cookies") {
		sessionOpts = append(sessionOpts, session.WithSecure(true))
	}
	sessions := session.NewCookieManager(sessionOpts...)

	handler := flow.NewHandler(settings, st, sessions)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Metrics stay outside the gate so scrapers need no session.
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(gr chi.Router) {
		gr.Use(handler.RequireAuth)
		handler.Routes(gr)
		gr.Get("/", homeHandler)
	})

	server := &http.Server{
		Addr:         address,
		Handler:      r,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
