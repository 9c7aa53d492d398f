// Package music defines the provider-neutral interfaces used by the
// orchestrators to talk to a music service on behalf of a user. The Spotify
// implementation lives in pkg/spotify; tests substitute fakes so no network
// access is needed.
package music

import (
	"context"

	"golang.org/x/oauth2"
)

// Track is the minimal view of a recommended track.
type Track struct {
	ID   string
	URI  string
	Name string
}

// Profile describes the account a Session is authenticated as.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
}

// Seed holds the recommendation parameters derived from a mood request.
type Seed struct {
	Genre   string
	Valence float64
	Limit   int
}

// RemotePlaylist is a playlist created on the provider.
type RemotePlaylist struct {
	ID  string
	URL string
}

// Session performs provider calls with a single user's credentials. Every
// method honours ctx for cancellation and deadlines.
type Session interface {
	// CurrentUser returns the profile owning the session token.
	CurrentUser(ctx context.Context) (*Profile, error)

	// Recommend returns tracks matching the seed. An empty result is an
	// error so callers never create empty playlists.
	Recommend(ctx context.Context, seed Seed) ([]Track, error)

	// CreatePlaylist creates a playlist owned by ownerID.
	CreatePlaylist(ctx context.Context, ownerID, name, description string, public bool) (*RemotePlaylist, error)

	// AddTracks appends tracks to an existing playlist.
	AddTracks(ctx context.Context, playlistID string, tracks []Track) error

	// DeletePlaylist removes a playlist created by ownerID. Providers that
	// have no delete operation unfollow it instead.
	DeletePlaylist(ctx context.Context, ownerID, playlistID string) error

	// Token returns the token currently in use, which differs from the one
	// the session was opened with after a transparent refresh.
	Token() (*oauth2.Token, error)
}

// Connector opens Sessions from stored OAuth tokens.
type Connector interface {
	Connect(token *oauth2.Token) Session
}
