// Package handlers contains the HTTP handlers for Mood-Playlist-Go. The
// handlers decode JSON requests, call the auth and playlist orchestrators and
// translate their typed errors into JSON error responses.
package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"Mood-Playlist-Go/pkg/db"
	"Mood-Playlist-Go/pkg/metrics"
	"Mood-Playlist-Go/pkg/mood"
	"Mood-Playlist-Go/pkg/playlist"
)

// Authenticator is the subset of *auth.Service used by the handlers.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*db.User, error)
	Register(ctx context.Context, displayName, email, password string) (*db.User, error)
	AuthURL(state string) string
	Callback(ctx context.Context, code string) (*db.User, error)
}

// Playlists is the subset of *playlist.Service used by the handlers.
type Playlists interface {
	CreateMoodPlaylist(ctx context.Context, req playlist.Request) (*playlist.Result, error)
	UserPlaylists(ctx context.Context, userID string) ([]db.Playlist, error)
}

// Application holds the dependencies shared by the handlers.
type Application struct {
	Auth      Authenticator
	Playlists Playlists
	// SignKey signs the OAuth state cookie.
	SignKey []byte
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
	// AuthLimiter throttles the /api/auth routes. Nil disables throttling.
	AuthLimiter *RateLimiter
	// AllowedOrigins restricts credentialed CORS requests to these origins.
	AllowedOrigins []string
}

// Routes registers every endpoint on a gorilla/mux router and wraps it in the
// shared middleware.
func (app *Application) Routes() http.Handler {
	r := mux.NewRouter()

	authRoutes := r.PathPrefix("/api/auth").Subrouter()
	authRoutes.HandleFunc("/login", app.Login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/register", app.Register).Methods(http.MethodPost)
	authRoutes.HandleFunc("/spotify-login", app.SpotifyLogin).Methods(http.MethodGet)
	authRoutes.HandleFunc("/callback", app.OAuthCallback).Methods(http.MethodGet)
	if app.AuthLimiter != nil {
		authRoutes.Use(app.AuthLimiter.Middleware)
	}

	r.HandleFunc("/api/playlist/mood", app.CreateMoodPlaylist).Methods(http.MethodPost)
	r.HandleFunc("/api/playlist/user/{userId}", app.UserPlaylists).Methods(http.MethodGet)
	r.HandleFunc("/api/playlist/options", app.Options).Methods(http.MethodGet)

	r.HandleFunc("/health", app.Health).Methods(http.MethodGet)
	if app.Metrics != nil {
		r.Handle("/metrics", app.Metrics.Handler()).Methods(http.MethodGet)
	}

	// Router middleware only runs on matched routes, so the fallback handlers
	// are wrapped in Logging directly.
	r.NotFoundHandler = app.Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondJSONError(w, http.StatusNotFound, "Not found")
	}))
	r.MethodNotAllowedHandler = app.Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))

	// Logging runs inside the router so it can label requests with the matched
	// route template. CORS wraps the router to answer preflight requests,
	// which match no route.
	r.Use(app.Logging)
	return CORS(app.AllowedOrigins)(SecurityHeaders(r))
}

// Health reports that the process is serving requests.
func (app *Application) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Options lists the supported mood and language keywords.
func (app *Application) Options(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{
		"moods":     mood.Moods(),
		"languages": mood.Languages(),
	})
}
