// Package auth implements local email/password accounts and the Spotify
// authorization-code login. Local accounts are created without Spotify tokens;
// a successful Spotify callback creates or refreshes the account linked to the
// Spotify user.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"Mood-Playlist-Go/pkg/apperr"
	"Mood-Playlist-Go/pkg/db"
	"Mood-Playlist-Go/pkg/metrics"
	"Mood-Playlist-Go/pkg/music"
	"Mood-Playlist-Go/pkg/spotify"
)

// LocalIDPrefix marks the placeholder Spotify ID of local accounts.
const LocalIDPrefix = "local_"

const msgInvalidCredentials = "Invalid email or password"

// Store is the persistence needed by Service. *db.DB satisfies it.
type Store interface {
	CreateUser(ctx context.Context, u *db.User) error
	UserByEmail(ctx context.Context, email string) (*db.User, error)
	UserByEmailOrName(ctx context.Context, email, displayName string) (*db.User, error)
	UpsertSpotifyUser(ctx context.Context, u *db.User) (*db.User, error)
}

// TokenExchanger trades authorization codes for tokens. *spotify.TokenService
// satisfies it. Exchange returns nil on failure.
type TokenExchanger interface {
	AuthURL(state string) string
	RedirectURL() string
	Exchange(ctx context.Context, code, redirectURI string) *spotify.Tokens
}

// Service implements the login, registration and OAuth callback operations.
type Service struct {
	store   Store
	tokens  TokenExchanger
	music   music.Connector
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	now      func() time.Time
	newID    func() string
	hashCost int
}

// NewService wires a Service. m may be nil.
func NewService(store Store, tokens TokenExchanger, connector music.Connector, log logrus.FieldLogger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		music:    connector,
		log:      log,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
		hashCost: bcrypt.DefaultCost,
	}
}

// Login authenticates a local user. Accounts registered with a password are
// verified against the stored bcrypt hash; accounts created through Spotify
// have no hash and are accepted for any password.
//
// Anyone who knows the email of a Spotify-created account can therefore log in
// as that user. The returned User carries the stored Spotify tokens and the
// login response hands the access token back to the caller. Deployments that
// expose the login route to untrusted clients should require Spotify users to
// set a password first.
func (s *Service) Login(ctx context.Context, email, password string) (*db.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Validationf("Missing required fields: email, password")
	}
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		s.metrics.Login("local", "failure")
		return nil, apperr.Unauthenticated(msgInvalidCredentials)
	}
	if err != nil {
		return nil, apperr.PersistenceFailure("Login failed", err)
	}
	if u.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			s.metrics.Login("local", "failure")
			return nil, apperr.Unauthenticated(msgInvalidCredentials)
		}
	}
	s.metrics.Login("local", "success")
	s.log.WithField("user_id", u.ID).Info("local login")
	return u, nil
}

// Register creates a local account. Email and display name must both be
// unused.
func (s *Service) Register(ctx context.Context, displayName, email, password string) (*db.User, error) {
	displayName = strings.TrimSpace(displayName)
	email = strings.TrimSpace(email)
	if displayName == "" || email == "" || password == "" {
		return nil, apperr.Validationf("Missing required fields: displayName, email, password")
	}
	_, err := s.store.UserByEmailOrName(ctx, email, displayName)
	if err == nil {
		return nil, apperr.Conflicting("User with this email or name already exists")
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, apperr.PersistenceFailure("Registration failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Registration failed", err)
	}
	now := s.now()
	u := &db.User{
		ID:           s.newID(),
		SpotifyID:    LocalIDPrefix + s.newID(),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, apperr.PersistenceFailure("Registration failed", err)
	}
	s.log.WithField("user_id", u.ID).Info("user registered")
	return u, nil
}

// AuthURL returns the Spotify authorize URL carrying the anti-forgery state.
func (s *Service) AuthURL(state string) string {
	return s.tokens.AuthURL(state)
}

// Callback completes the Spotify login: the code is exchanged for tokens, the
// Spotify profile is fetched and the linked user is created or has its tokens
// replaced.
func (s *Service) Callback(ctx context.Context, code string) (*db.User, error) {
	if code == "" {
		return nil, apperr.Validationf("Missing authorization code")
	}
	tok := s.tokens.Exchange(ctx, code, s.tokens.RedirectURL())
	if tok == nil {
		s.metrics.Login("spotify", "failure")
		return nil, apperr.UpstreamFailure("Login failed", errors.New("token exchange failed"))
	}

	profile, err := s.music.Connect(tok.OAuth2()).CurrentUser(ctx)
	if err != nil {
		s.metrics.Login("spotify", "failure")
		s.log.WithError(err).Error("fetch spotify profile failed")
		return nil, apperr.UpstreamFailure("Login failed", err)
	}

	now := s.now()
	access, refresh := tok.AccessToken, tok.RefreshToken
	u := &db.User{
		ID:           s.newID(),
		SpotifyID:    profile.ID,
		DisplayName:  profile.DisplayName,
		Email:        profile.Email,
		AccessToken:  &access,
		RefreshToken: &refresh,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.DisplayName == "" {
		u.DisplayName = profile.ID
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		u.TokenExpiry = &expiry
	}
	stored, err := s.store.UpsertSpotifyUser(ctx, u)
	if err != nil {
		return nil, apperr.PersistenceFailure("Login failed", err)
	}
	s.metrics.Login("spotify", "success")
	s.log.WithFields(logrus.Fields{"user_id": stored.ID, "spotify_user": stored.SpotifyID}).Info("spotify login")
	return stored, nil
}
