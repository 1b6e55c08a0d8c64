package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/phenrril/modularstore/internal/app"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	var db *gorm.DB
	if app.Backend() == app.BackendPostgres {
		var err error
		db, err = gorm.Open(postgres.Open(dsnFromEnv()), &gorm.Config{})
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to connect to database")
		}
	} else {
		zlog.Info().Msg("STATE_BACKEND=memory, sessions are kept in process")
	}

	application, err := app.NewApp(db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to create app")
	}
	if err := application.MigrateAndSeed(); err != nil {
		zlog.Fatal().Err(err).Msg("failed to migrate and seed database")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           application.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepLoop(ctx, application, envDuration("SESSION_TTL", 30*24*time.Hour), envDuration("FLOW_IDLE", time.Hour))

	go func() {
		zlog.Info().Str("port", port).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// dsnFromEnv prefers DB_DSN and otherwise assembles a DSN from DB_* variables,
// falling back to the POSTGRES_* names used by the postgres image.
func dsnFromEnv() string {
	if dsn := strings.TrimSpace(os.Getenv("DB_DSN")); dsn != "" {
		return dsn
	}
	parts := []struct {
		key string
		env []string
		def string
	}{
		{"host", []string{"DB_HOST"}, "localhost"},
		{"user", []string{"DB_USER", "POSTGRES_USER"}, "postgres"},
		{"password", []string{"DB_PASSWORD", "POSTGRES_PASSWORD"}, "postgres"},
		{"dbname", []string{"DB_NAME", "POSTGRES_DB"}, "modularstore"},
		{"port", []string{"DB_PORT"}, "5432"},
		{"sslmode", []string{"DB_SSLMODE"}, "disable"},
	}
	kv := make([]string, 0, len(parts))
	for _, p := range parts {
		kv = append(kv, p.key+"="+firstEnv(p.def, p.env...))
	}
	return strings.Join(kv, " ")
}

func firstEnv(def string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}

// sweepLoop purges idle persisted sessions and evicts idle checkout flows.
func sweepLoop(ctx context.Context, a *app.App, sessionTTL, flowIdle time.Duration) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.EvictIdleFlows(flowIdle); n > 0 {
				zlog.Debug().Int("flows", n).Msg("evicted idle checkout flows")
			}
			n, err := a.PurgeSessions(ctx, sessionTTL)
			if err != nil {
				zlog.Error().Err(err).Msg("purge sessions")
				continue
			}
			if n > 0 {
				zlog.Info().Int64("sessions", n).Msg("purged idle sessions")
			}
		}
	}
}
