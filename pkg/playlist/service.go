// Package playlist creates mood playlists for users and lists the playlists
// created so far. Users with a stored Spotify token get a real playlist built
// from Spotify recommendations; everyone else gets a locally recorded mock
// playlist and is asked to connect Spotify.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"Mood-Playlist-Go/pkg/apperr"
	"Mood-Playlist-Go/pkg/db"
	"Mood-Playlist-Go/pkg/metrics"
	"Mood-Playlist-Go/pkg/mood"
	"Mood-Playlist-Go/pkg/music"
)

// TrackLimit is the number of recommendations requested per playlist.
const TrackLimit = 20

const (
	msgCreated     = "Playlist created successfully!"
	msgMockCreated = "Mock playlist created! Connect to Spotify to create real playlists."
	mockSuffix     = " (Mock)"
)

// Store is the persistence needed by Service. *db.DB satisfies it.
type Store interface {
	UserByID(ctx context.Context, id string) (*db.User, error)
	UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiry *time.Time) error
	CreatePlaylist(ctx context.Context, p *db.Playlist) error
	ListPlaylists(ctx context.Context, userID string) ([]db.Playlist, error)
}

// Request describes a mood playlist request. AccessToken is accepted for
// compatibility with existing clients but ignored: the token stored for the
// user is authoritative.
type Request struct {
	Mood        string
	Language    string
	UserID      string
	AccessToken string
}

// Result is returned by CreateMoodPlaylist. PlaylistURL is nil for mock
// playlists.
type Result struct {
	Message      string
	Playlist     *db.Playlist
	PlaylistURL  *string
	NeedsSpotify bool
}

// Service orchestrates playlist creation.
type Service struct {
	store   Store
	music   music.Connector
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	// now and newID are replaced in tests.
	now   func() time.Time
	newID func() string
}

// NewService wires a Service. m may be nil.
func NewService(store Store, connector music.Connector, log logrus.FieldLogger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		music:   connector,
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
}

// Name returns the display name of a playlist for mood and language.
func Name(moodKeyword, language string) string {
	return fmt.Sprintf("%s %s Playlist", moodKeyword, language)
}

// Description returns the description stored on the Spotify playlist.
func Description(moodKeyword, language string) string {
	return fmt.Sprintf("A playlist generated for your %s mood in %s", moodKeyword, language)
}

// CreateMoodPlaylist creates a playlist for req.UserID. See the package
// documentation for the real and mock paths.
func (s *Service) CreateMoodPlaylist(ctx context.Context, req Request) (*Result, error) {
	req.Mood = strings.TrimSpace(req.Mood)
	req.Language = strings.TrimSpace(req.Language)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.Mood == "" || req.Language == "" || req.UserID == "" {
		return nil, apperr.Validationf("Missing required fields: mood, language, userId")
	}

	user, err := s.store.UserByID(ctx, req.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Missing("User not found")
	}
	if err != nil {
		return nil, apperr.PersistenceFailure("Failed to create playlist", err)
	}

	if user.HasSpotify() {
		return s.createSpotifyPlaylist(ctx, user, req)
	}
	return s.createMockPlaylist(ctx, user, req)
}

func (s *Service) createMockPlaylist(ctx context.Context, user *db.User, req Request) (*Result, error) {
	p := &db.Playlist{
		ID:        s.newID(),
		UserID:    user.ID,
		Mood:      req.Mood,
		Language:  req.Language,
		Name:      Name(req.Mood, req.Language) + mockSuffix,
		CreatedAt: s.now(),
	}
	if err := s.store.CreatePlaylist(ctx, p); err != nil {
		s.metrics.PlaylistCreated("mock", "failure")
		return nil, apperr.PersistenceFailure("Failed to create mock playlist", err)
	}
	s.metrics.PlaylistCreated("mock", "success")
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "playlist_id": p.ID, "mood": req.Mood}).Info("mock playlist created")
	return &Result{Message: msgMockCreated, Playlist: p, NeedsSpotify: true}, nil
}

func storedToken(u *db.User) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: *u.AccessToken, TokenType: "Bearer"}
	if u.RefreshToken != nil {
		tok.RefreshToken = *u.RefreshToken
	}
	if u.TokenExpiry != nil {
		tok.Expiry = *u.TokenExpiry
	}
	return tok
}

func (s *Service) createSpotifyPlaylist(ctx context.Context, user *db.User, req Request) (*Result, error) {
	log := s.log.WithFields(logrus.Fields{"user_id": user.ID, "mood": req.Mood, "language": req.Language})
	session := s.music.Connect(storedToken(user))
	defer s.saveRefreshedToken(ctx, log, session, user)

	fail := func(step string, err error) (*Result, error) {
		s.metrics.ProviderFailure(step)
		s.metrics.PlaylistCreated("real", "failure")
		log.WithError(err).WithField("step", step).Error("spotify playlist creation failed")
		return nil, apperr.UpstreamFailure("Failed to create Spotify playlist", err)
	}

	tracks, err := session.Recommend(ctx, music.Seed{
		Genre:   mood.Genre(req.Language),
		Valence: mood.Valence(req.Mood),
		Limit:   TrackLimit,
	})
	if err != nil {
		return fail("recommendations", err)
	}

	profile, err := session.CurrentUser(ctx)
	if err != nil {
		return fail("profile", err)
	}

	name := Name(req.Mood, req.Language)
	remote, err := session.CreatePlaylist(ctx, profile.ID, name, Description(req.Mood, req.Language), false)
	if err != nil {
		return fail("create_playlist", err)
	}
	log = log.WithFields(logrus.Fields{"spotify_user": profile.ID, "spotify_playlist": remote.ID})

	if err := session.AddTracks(ctx, remote.ID, tracks); err != nil {
		s.compensate(ctx, log, session, profile.ID, remote.ID)
		return fail("add_tracks", err)
	}

	remoteID := remote.ID
	p := &db.Playlist{
		ID:                s.newID(),
		UserID:            user.ID,
		Mood:              req.Mood,
		Language:          req.Language,
		SpotifyPlaylistID: &remoteID,
		Name:              name,
		TrackCount:        len(tracks),
		CreatedAt:         s.now(),
	}
	if err := s.store.CreatePlaylist(ctx, p); err != nil {
		s.compensate(ctx, log, session, profile.ID, remote.ID)
		s.metrics.PlaylistCreated("real", "failure")
		log.WithError(err).Error("persist playlist failed")
		return nil, apperr.PersistenceFailure("Failed to create Spotify playlist", err)
	}

	s.metrics.PlaylistCreated("real", "success")
	log.WithField("playlist_id", p.ID).Info("spotify playlist created")
	url := remote.URL
	return &Result{Message: msgCreated, Playlist: p, PlaylistURL: &url}, nil
}

// compensate deletes a remote playlist left behind by a failed creation. Its
// own failure is logged and counted but never returned.
func (s *Service) compensate(ctx context.Context, log logrus.FieldLogger, session music.Session, ownerID, playlistID string) {
	if err := session.DeletePlaylist(context.WithoutCancel(ctx), ownerID, playlistID); err != nil {
		s.metrics.Compensation("failed")
		log.WithError(err).Warn("could not remove orphaned spotify playlist")
		return
	}
	s.metrics.Compensation("deleted")
	log.Info("removed orphaned spotify playlist")
}

// saveRefreshedToken writes back a token the oauth2 transport refreshed while
// the session was in use.
func (s *Service) saveRefreshedToken(ctx context.Context, log logrus.FieldLogger, session music.Session, user *db.User) {
	tok, err := session.Token()
	if err != nil || tok == nil || tok.AccessToken == "" || tok.AccessToken == *user.AccessToken {
		return
	}
	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry
		expiry = &e
	}
	refresh := tok.RefreshToken
	if refresh == "" && user.RefreshToken != nil {
		refresh = *user.RefreshToken
	}
	if err := s.store.UpdateTokens(context.WithoutCancel(ctx), user.ID, tok.AccessToken, refresh, expiry); err != nil {
		log.WithError(err).Warn("could not persist refreshed spotify token")
		return
	}
	log.Debug("refreshed spotify token saved")
}

// UserPlaylists returns the playlists of userID, newest first. A user without
// playlists yields an empty slice.
func (s *Service) UserPlaylists(ctx context.Context, userID string) ([]db.Playlist, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validationf("Missing required field: userId")
	}
	ps, err := s.store.ListPlaylists(ctx, userID)
	if err != nil {
		return nil, apperr.PersistenceFailure("Failed to fetch playlists", err)
	}
	return ps, nil
}
