// Command web starts the Mood-Playlist-Go HTTP API. Configuration comes from
// an optional TOML file and environment variables (see pkg/config); the server
// listens on PORT (3001 by default) and shuts down gracefully on SIGINT or
// SIGTERM.

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

	"github.com/sirupsen/logrus"

	"Mood-Playlist-Go/pkg/auth"
	"Mood-Playlist-Go/pkg/config"
	"Mood-Playlist-Go/pkg/db"
	"Mood-Playlist-Go/pkg/handlers"
	"Mood-Playlist-Go/pkg/metrics"
	"Mood-Playlist-Go/pkg/playlist"
	"Mood-Playlist-Go/pkg/spotify"
)

func main() {
	log := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	configureLogger(log, cfg)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// configureLogger applies the level and format settings. An explicit format
// wins; otherwise production logs JSON and other environments log text.
// Unknown levels fall back to info.
func configureLogger(log *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	useJSON := cfg.Production()
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		useJSON = true
	case "text":
		useJSON = false
	}
	if useJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// app bundles the HTTP handler with the resources that must be released on
// shutdown.
type app struct {
	handler http.Handler
	db      *db.DB
}

// newApp opens the database and wires the orchestrators and handlers.
func newApp(cfg *config.Config, log *logrus.Logger) (*app, error) {
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	tokens := spotify.NewTokenService(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURL, cfg.ProviderTimeout, log)
	connector := spotify.NewConnector(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURL, cfg.ProviderTimeout)

	h := &handlers.Application{
		Auth:           auth.NewService(database, tokens, connector, log.WithField("component", "auth"), m),
		Playlists:      playlist.NewService(database, connector, log.WithField("component", "playlist"), m),
		SignKey:        []byte(cfg.SigningKey),
		Metrics:        m,
		Log:            log.WithField("component", "http"),
		AuthLimiter:    handlers.NewRateLimiter(cfg.RateLimitPerMinute, cfg.TrustedProxies...),
		AllowedOrigins: cfg.CORSOrigins,
	}
	return &app{handler: h.Routes(), db: database}, nil
}

func run(cfg *config.Config, log *logrus.Logger) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.db.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Playlist creation makes several sequential provider calls.
		WriteTimeout: 4*cfg.ProviderTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "env": cfg.Env}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
