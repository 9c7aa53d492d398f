package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is an account that can request playlists. Local accounts carry a
// "local_" placeholder SpotifyID and nil tokens until Spotify is connected.
type User struct {
	ID           string     `json:"id"`
	SpotifyID    string     `json:"spotifyId"`
	DisplayName  string     `json:"displayName"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	AccessToken  *string    `json:"accessToken"`
	RefreshToken *string    `json:"refreshToken"`
	TokenExpiry  *time.Time `json:"tokenExpiry,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// HasSpotify reports whether the user holds a Spotify access token.
func (u *User) HasSpotify() bool {
	return u.AccessToken != nil && *u.AccessToken != ""
}

const userColumns = `id, spotify_id, display_name, email, password_hash, access_token, refresh_token, token_expiry, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u       User
		email   sql.NullString
		access  sql.NullString
		refresh sql.NullString
		expiry  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.SpotifyID, &u.DisplayName, &email, &u.PasswordHash, &access, &refresh, &expiry, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.AccessToken = stringPtr(access)
	u.RefreshToken = stringPtr(refresh)
	u.TokenExpiry = timePtr(expiry)
	return &u, nil
}

// CreateUser inserts u. The caller assigns the ID and timestamps.
func (db *DB) CreateUser(ctx context.Context, u *User) error {
	_, err := db.exec(ctx, `INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.SpotifyID, u.DisplayName, u.Email, u.PasswordHash,
		nullString(u.AccessToken), nullString(u.RefreshToken), nullTime(u.TokenExpiry),
		u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByID returns the user with the given internal ID or ErrNotFound.
func (db *DB) UserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

// UserByEmail returns the first user registered with email or ErrNotFound.
func (db *DB) UserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=? ORDER BY created_at LIMIT 1`, email))
}

// UserBySpotifyID returns the user linked to the given Spotify account.
func (db *DB) UserBySpotifyID(ctx context.Context, spotifyID string) (*User, error) {
	return scanUser(db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE spotify_id=?`, spotifyID))
}

// UserByEmailOrName returns any user whose email or display name matches. It
// backs the duplicate check performed during registration.
func (db *DB) UserByEmailOrName(ctx context.Context, email, displayName string) (*User, error) {
	return scanUser(db.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=? OR display_name=? LIMIT 1`, email, displayName))
}

// UpsertSpotifyUser creates u when no user is linked to u.SpotifyID, otherwise
// it replaces the stored tokens. The stored record is returned so callers see
// the ID of an existing account.
func (db *DB) UpsertSpotifyUser(ctx context.Context, u *User) (*User, error) {
	_, err := db.exec(ctx, `INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(spotify_id) DO UPDATE SET
			access_token=excluded.access_token,
			refresh_token=excluded.refresh_token,
			token_expiry=excluded.token_expiry,
			updated_at=excluded.updated_at`,
		u.ID, u.SpotifyID, u.DisplayName, u.Email, u.PasswordHash,
		nullString(u.AccessToken), nullString(u.RefreshToken), nullTime(u.TokenExpiry),
		u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return db.UserBySpotifyID(ctx, u.SpotifyID)
}

// UpdateTokens replaces the OAuth tokens stored for userID. ErrNotFound is
// returned when the user does not exist.
func (db *DB) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiry *time.Time) error {
	res, err := db.exec(ctx, `UPDATE users SET access_token=?, refresh_token=?, token_expiry=?, updated_at=? WHERE id=?`,
		accessToken, refreshToken, nullTime(expiry), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
