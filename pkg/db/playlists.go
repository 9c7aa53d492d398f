package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Playlist records a generated mood playlist. A nil SpotifyPlaylistID marks a
// mock playlist that only exists locally.
type Playlist struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	Mood              string    `json:"mood"`
	Language          string    `json:"language"`
	SpotifyPlaylistID *string   `json:"spotifyPlaylistId"`
	Name              string    `json:"name"`
	TrackCount        int       `json:"trackCount"`
	CreatedAt         time.Time `json:"createdAt"`
}

// IsMock reports whether the playlist has no Spotify counterpart.
func (p *Playlist) IsMock() bool { return p.SpotifyPlaylistID == nil }

// CreatePlaylist inserts p. Playlists are never updated afterwards.
func (db *DB) CreatePlaylist(ctx context.Context, p *Playlist) error {
	_, err := db.exec(ctx, `INSERT INTO playlists(id, user_id, mood, language, spotify_playlist_id, name, track_count, created_at) VALUES(?,?,?,?,?,?,?,?)`,
		p.ID, p.UserID, p.Mood, p.Language, nullString(p.SpotifyPlaylistID), p.Name, p.TrackCount, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert playlist: %w", err)
	}
	return nil
}

// ListPlaylists returns every playlist of userID, newest first. Rows sharing a
// timestamp are returned in reverse insertion order.
func (db *DB) ListPlaylists(ctx context.Context, userID string) ([]Playlist, error) {
	rows, err := db.query(ctx, `SELECT id, user_id, mood, language, spotify_playlist_id, name, track_count, created_at
		FROM playlists WHERE user_id=? ORDER BY created_at DESC, seq DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	ps := []Playlist{}
	for rows.Next() {
		var (
			p         Playlist
			spotifyID sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Mood, &p.Language, &spotifyID, &p.Name, &p.TrackCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.SpotifyPlaylistID = stringPtr(spotifyID)
		ps = append(ps, p)
	}
	return ps, rows.Err()
}
