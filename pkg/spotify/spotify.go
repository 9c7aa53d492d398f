// Package spotify wraps the zmb3 Spotify client providing the music.Session
// used by the playlist and auth orchestrators, plus the OAuth token service
// used during login.
//
// The wrapped library does not accept a context. Its HTTP client carries the
// provider timeout, which ends stalled requests, and each call also returns
// early when the caller's context is done.

package spotify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"

	"Mood-Playlist-Go/pkg/music"
)

// maxTracksPerRequest is the Web API limit for adding tracks to a playlist.
const maxTracksPerRequest = 100

// api defines the subset of the spotify.Client used by this package.
// It allows the concrete client to be replaced in tests.
type api interface {
	CurrentUser() (*spotify.PrivateUser, error)
	GetRecommendations(seeds spotify.Seeds, attrs *spotify.TrackAttributes, opt *spotify.Options) (*spotify.Recommendations, error)
	CreatePlaylistForUser(userID, playlistName, description string, public bool) (*spotify.FullPlaylist, error)
	AddTracksToPlaylist(playlistID spotify.ID, trackIDs ...spotify.ID) (string, error)
	UnfollowPlaylist(owner, playlist spotify.ID) error
	Token() (*oauth2.Token, error)
}

// Session implements music.Session on top of a user-authenticated Spotify
// client.
type Session struct {
	client api
}

// Compile-time interface check ensuring Session satisfies music.Session.
var _ music.Session = (*Session)(nil)

// Connector creates Sessions sharing one OAuth configuration so expired tokens
// are refreshed with the application's client credentials.
type Connector struct {
	config  *oauth2.Config
	timeout time.Duration
	base    http.RoundTripper
}

var _ music.Connector = (*Connector)(nil)

// NewConnector returns a Connector for the given client registration. timeout
// bounds every HTTP request a Session makes, token refreshes included.
func NewConnector(clientID, clientSecret, redirectURL string, timeout time.Duration) *Connector {
	return &Connector{config: oauthConfig(clientID, clientSecret, redirectURL), timeout: timeout}
}

// WithTransport sets the transport beneath the OAuth layer. It is used to
// route API calls to a test server.
func (c *Connector) WithTransport(rt http.RoundTripper) *Connector {
	c.base = rt
	return c
}

// Connect opens a Session using token. The underlying oauth2 transport
// refreshes the token when it has expired and a refresh token is present.
func (c *Connector) Connect(token *oauth2.Token) music.Session {
	// oauth2 refreshes through the client stored in ctx and wraps its
	// transport for API calls.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: c.base, Timeout: c.timeout})
	hc := c.config.Client(ctx, token)
	hc.Timeout = c.timeout
	client := spotify.NewClient(hc)
	return &Session{client: &client}
}

// call runs fn and stops waiting when ctx is done. fn cannot be cancelled but
// the HTTP client timeout ends its request, so it returns shortly after.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// CurrentUser fetches the profile of the authenticated user.
func (s *Session) CurrentUser(ctx context.Context) (*music.Profile, error) {
	u, err := call(ctx, s.client.CurrentUser)
	if err != nil {
		return nil, err
	}
	return &music.Profile{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}, nil
}

// Recommend requests tracks for a single genre seed biased towards the target
// valence. A "no recommendations found" error is returned for empty results.
func (s *Session) Recommend(ctx context.Context, seed music.Seed) ([]music.Track, error) {
	seeds := spotify.Seeds{Genres: []string{seed.Genre}}
	attrs := spotify.NewTrackAttributes().TargetValence(seed.Valence)
	var opt *spotify.Options
	if seed.Limit > 0 {
		limit := seed.Limit
		opt = &spotify.Options{Limit: &limit}
	}
	recs, err := call(ctx, func() (*spotify.Recommendations, error) {
		return s.client.GetRecommendations(seeds, attrs, opt)
	})
	if err != nil {
		return nil, err
	}
	if len(recs.Tracks) == 0 {
		return nil, fmt.Errorf("no recommendations found")
	}
	tracks := make([]music.Track, len(recs.Tracks))
	for i, t := range recs.Tracks {
		tracks[i] = music.Track{ID: string(t.ID), URI: string(t.URI), Name: t.Name}
	}
	return tracks, nil
}

// CreatePlaylist creates a playlist for ownerID and returns its ID and the
// public Spotify URL.
func (s *Session) CreatePlaylist(ctx context.Context, ownerID, name, description string, public bool) (*music.RemotePlaylist, error) {
	pl, err := call(ctx, func() (*spotify.FullPlaylist, error) {
		return s.client.CreatePlaylistForUser(ownerID, name, description, public)
	})
	if err != nil {
		return nil, err
	}
	return &music.RemotePlaylist{ID: string(pl.ID), URL: pl.ExternalURLs["spotify"]}, nil
}

// AddTracks adds tracks in batches of at most 100, the API maximum.
func (s *Session) AddTracks(ctx context.Context, playlistID string, tracks []music.Track) error {
	ids := make([]spotify.ID, len(tracks))
	for i, t := range tracks {
		ids[i] = spotify.ID(t.ID)
	}
	for start := 0; start < len(ids); start += maxTracksPerRequest {
		end := start + maxTracksPerRequest
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		_, err := call(ctx, func() (string, error) {
			return s.client.AddTracksToPlaylist(spotify.ID(playlistID), batch...)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DeletePlaylist unfollows the playlist, which is how Spotify deletes a
// playlist owned by the current user.
func (s *Session) DeletePlaylist(ctx context.Context, ownerID, playlistID string) error {
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.UnfollowPlaylist(spotify.ID(ownerID), spotify.ID(playlistID))
	})
	return err
}

// Token returns the token currently used by the client.
func (s *Session) Token() (*oauth2.Token, error) {
	return s.client.Token()
}
