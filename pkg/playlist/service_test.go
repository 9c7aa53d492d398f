package playlist

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"Mood-Playlist-Go/pkg/apperr"
	"Mood-Playlist-Go/pkg/db"
	"Mood-Playlist-Go/pkg/music"
)

// fakeSession records calls and returns canned provider responses.
type fakeSession struct {
	calls     []string
	seed      music.Seed
	tracks    []music.Track
	profile   *music.Profile
	remote    *music.RemotePlaylist
	added     []music.Track
	createArg []string
	public    bool
	token     *oauth2.Token
	failAt    string
}

func (f *fakeSession) fail(step string) error {
	f.calls = append(f.calls, step)
	if f.failAt == step {
		return errors.New(step + " failed")
	}
	return nil
}

func (f *fakeSession) CurrentUser(context.Context) (*music.Profile, error) {
	if err := f.fail("profile"); err != nil {
		return nil, err
	}
	return f.profile, nil
}

func (f *fakeSession) Recommend(_ context.Context, seed music.Seed) ([]music.Track, error) {
	f.seed = seed
	if err := f.fail("recommend"); err != nil {
		return nil, err
	}
	return f.tracks, nil
}

func (f *fakeSession) CreatePlaylist(_ context.Context, owner, name, desc string, public bool) (*music.RemotePlaylist, error) {
	f.createArg = []string{owner, name, desc}
	f.public = public
	if err := f.fail("create"); err != nil {
		return nil, err
	}
	return f.remote, nil
}

func (f *fakeSession) AddTracks(_ context.Context, _ string, tracks []music.Track) error {
	f.added = tracks
	return f.fail("add")
}

func (f *fakeSession) DeletePlaylist(context.Context, string, string) error {
	return f.fail("delete")
}

func (f *fakeSession) Token() (*oauth2.Token, error) { return f.token, nil }

type fakeConnector struct {
	session   *fakeSession
	connected *oauth2.Token
	count     int
}

func (c *fakeConnector) Connect(tok *oauth2.Token) music.Session {
	c.count++
	c.connected = tok
	return c.session
}

func newSession() *fakeSession {
	return &fakeSession{
		tracks:  []music.Track{{ID: "1", URI: "spotify:track:1"}, {ID: "2", URI: "spotify:track:2"}},
		profile: &music.Profile{ID: "spotify-ann"},
		remote:  &music.RemotePlaylist{ID: "pl1", URL: "https://open.spotify.com/playlist/pl1"},
	}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	svc       *Service
	db        *db.DB
	connector *fakeConnector
}

func newFixture(t *testing.T, session *fakeSession) *fixture {
	t.Helper()
	d, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	c := &fakeConnector{session: session}
	svc := NewService(d, c, quietLogger(), nil)
	return &fixture{svc: svc, db: d, connector: c}
}

func (f *fixture) addUser(t *testing.T, id string, token *string) {
	t.Helper()
	now := time.Now().UTC()
	u := &db.User{ID: id, SpotifyID: "local_" + id, DisplayName: id, Email: id + "@x.com", AccessToken: token, CreatedAt: now, UpdatedAt: now}
	if token != nil {
		refresh := "refresh"
		u.RefreshToken = &refresh
		u.SpotifyID = "sp_" + id
	}
	require.NoError(t, f.db.CreateUser(context.Background(), u))
}

func ptr(s string) *string { return &s }

func TestCreateMoodPlaylistValidation(t *testing.T) {
	f := newFixture(t, newSession())
	for _, req := range []Request{
		{Language: "hindi", UserID: "u"},
		{Mood: "sad", UserID: "u"},
		{Mood: "sad", Language: "hindi"},
		{Mood: "  ", Language: "hindi", UserID: "u"},
	} {
		_, err := f.svc.CreateMoodPlaylist(context.Background(), req)
		assert.Equal(t, apperr.Validation, apperr.KindOf(err), "request %+v", req)
	}
}

func TestCreateMoodPlaylistUnknownUser(t *testing.T) {
	f := newFixture(t, newSession())
	_, err := f.svc.CreateMoodPlaylist(context.Background(), Request{Mood: "sad", Language: "hindi", UserID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Equal(t, "User not found", apperr.Message(err, ""))
}

// TestCreateMoodPlaylistMock verifies users without a token get a mock
// playlist and no provider session is opened.
func TestCreateMoodPlaylistMock(t *testing.T) {
	f := newFixture(t, newSession())
	f.addUser(t, "ann", nil)

	res, err := f.svc.CreateMoodPlaylist(context.Background(), Request{Mood: "sad", Language: "hindi", UserID: "ann", AccessToken: "ignored"})
	require.NoError(t, err)
	assert.True(t, res.NeedsSpotify)
	assert.Nil(t, res.PlaylistURL)
	assert.Nil(t, res.Playlist.SpotifyPlaylistID)
	assert.Equal(t, "sad hindi Playlist (Mock)", res.Playlist.Name)
	assert.True(t, strings.HasSuffix(res.Playlist.Name, "(Mock)"))
	assert.Zero(t, f.connector.count, "mock path must not contact the provider")

	stored, err := f.db.ListPlaylists(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].IsMock())
}

// TestCreateMoodPlaylistReal runs the full recommend, profile, create, add and
// persist sequence against a fake session.
func TestCreateMoodPlaylistReal(t *testing.T) {
	session := newSession()
	f := newFixture(t, session)
	f.addUser(t, "ann", ptr("stored-token"))

	res, err := f.svc.CreateMoodPlaylist(context.Background(), Request{Mood: "sad", Language: "Hindi", UserID: "ann", AccessToken: "client-token"})
	require.NoError(t, err)

	assert.Equal(t, "stored-token", f.connector.connected.AccessToken, "stored token must be used")
	assert.Equal(t, []string{"recommend", "profile", "create", "add"}, session.calls)
	assert.Equal(t, music.Seed{Genre: "indian", Valence: 0.2, Limit: TrackLimit}, session.seed)
	assert.Equal(t, []string{"spotify-ann", "sad Hindi Playlist", "A playlist generated for your sad mood in Hindi"}, session.createArg)
	assert.False(t, session.public)
	assert.Len(t, session.added, 2)

	assert.False(t, res.NeedsSpotify)
	require.NotNil(t, res.PlaylistURL)
	assert.Equal(t, "https://open.spotify.com/playlist/pl1", *res.PlaylistURL)
	require.NotNil(t, res.Playlist.SpotifyPlaylistID)
	assert.Equal(t, "pl1", *res.Playlist.SpotifyPlaylistID)
	assert.Equal(t, 2, res.Playlist.TrackCount)

	stored, err := f.db.ListPlaylists(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "sad Hindi Playlist", stored[0].Name)
}

// TestCreateMoodPlaylistStepFailures checks each failing provider step maps to
// an upstream error and leaves nothing in storage.
func TestCreateMoodPlaylistStepFailures(t *testing.T) {
	cases := []struct {
		failAt      string
		wantCalls   []string
		compensated bool
	}{
		{"recommend", []string{"recommend"}, false},
		{"profile", []string{"recommend", "profile"}, false},
		{"create", []string{"recommend", "profile", "create"}, false},
		{"add", []string{"recommend", "profile", "create", "add", "delete"}, true},
	}
	for _, c := range cases {
		t.Run(c.failAt, func(t *testing.T) {
			session := newSession()
			session.failAt = c.failAt
			f := newFixture(t, session)
			f.addUser(t, "ann", ptr("tok"))

			_, err := f.svc.CreateMoodPlaylist(context.Background(), Request{Mood: "happy", Language: "english", UserID: "ann"})
			require.Error(t, err)
			assert.Equal(t, apperr.Upstream, apperr.KindOf(err))
			assert.Equal(t, c.wantCalls, session.calls)

			stored, err := f.db.ListPlaylists(context.Background(), "ann")
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

type failingStore struct {
	*db.DB
}

func (failingStore) CreatePlaylist(context.Context, *db.Playlist) error {
	return errors.New("disk full")
}

// TestPersistFailureCompensates ensures the remote playlist is removed when the
// local record cannot be written.
func TestPersistFailureCompensates(t *testing.T) {
	session := newSession()
	f := newFixture(t, session)
	f.addUser(t, "ann", ptr("tok"))
	svc := NewService(failingStore{f.db}, f.connector, quietLogger(), nil)

	_, err := svc.CreateMoodPlaylist(context.Background(), Request{Mood: "chill", Language: "punjabi", UserID: "ann"})
	require.Error(t, err)
	assert.Equal(t, apperr.Persistence, apperr.KindOf(err))
	assert.Equal(t, "delete", session.calls[len(session.calls)-1])
}

// TestRefreshedTokenSaved verifies a token refreshed during the session is
// written back to the user record.
func TestRefreshedTokenSaved(t *testing.T) {
	session := newSession()
	session.token = &oauth2.Token{AccessToken: "fresh", RefreshToken: "fresh-refresh", Expiry: time.Now().Add(time.Hour)}
	f := newFixture(t, session)
	f.addUser(t, "ann", ptr("stale"))

	_, err := f.svc.CreateMoodPlaylist(context.Background(), Request{Mood: "romantic", Language: "english", UserID: "ann"})
	require.NoError(t, err)

	u, err := f.db.UserByID(context.Background(), "ann")
	require.NoError(t, err)
	assert.Equal(t, "fresh", *u.AccessToken)
	assert.Equal(t, "fresh-refresh", *u.RefreshToken)
	assert.NotNil(t, u.TokenExpiry)
}

// TestUserPlaylistsOrder ensures results are newest first and empty for a user
// with no playlists.
func TestUserPlaylistsOrder(t *testing.T) {
	f := newFixture(t, newSession())
	f.addUser(t, "ann", nil)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	f.svc.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	for _, m := range []string{"sad", "happy", "chill"} {
		_, err := f.svc.CreateMoodPlaylist(context.Background(), Request{Mood: m, Language: "english", UserID: "ann"})
		require.NoError(t, err)
	}

	ps, err := f.svc.UserPlaylists(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "chill", ps[0].Mood)
	assert.Equal(t, "sad", ps[2].Mood)
	for i := 1; i < len(ps); i++ {
		assert.True(t, ps[i-1].CreatedAt.After(ps[i].CreatedAt))
	}

	empty, err := f.svc.UserPlaylists(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = f.svc.UserPlaylists(context.Background(), "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestNameAndDescription(t *testing.T) {
	assert.Equal(t, "happy english Playlist", Name("happy", "english"))
	assert.Equal(t, "A playlist generated for your happy mood in english", Description("happy", "english"))
}
