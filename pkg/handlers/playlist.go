package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"Mood-Playlist-Go/pkg/playlist"
)

// CreateMoodPlaylist creates a playlist for the mood and language in the
// request body. accessToken is accepted but the token stored for the user is
// the one used.
func (app *Application) CreateMoodPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mood        string `json:"mood"`
		Language    string `json:"language"`
		UserID      string `json:"userId"`
		AccessToken string `json:"accessToken"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Missing required fields: mood, language, userId")
		return
	}
	res, err := app.Playlists.CreateMoodPlaylist(r.Context(), playlist.Request{
		Mood:        req.Mood,
		Language:    req.Language,
		UserID:      req.UserID,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		app.respondError(w, r, err, "Failed to create playlist")
		return
	}
	body := map[string]any{
		"success":     true,
		"message":     res.Message,
		"playlistUrl": res.PlaylistURL,
		"playlist":    res.Playlist,
	}
	if res.NeedsSpotify {
		body["needsSpotify"] = true
	}
	respondJSON(w, http.StatusOK, body)
}

// UserPlaylists lists the playlists of the user named in the path, newest
// first.
func (app *Application) UserPlaylists(w http.ResponseWriter, r *http.Request) {
	ps, err := app.Playlists.UserPlaylists(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		app.respondError(w, r, err, "Failed to fetch playlists")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"playlists": ps,
	})
}
