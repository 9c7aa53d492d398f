// This file groups the authentication endpoints: local login and
// registration, and the Spotify OAuth redirect and callback. The OAuth state
// is kept in an HMAC-signed cookie and checked against the callback query.

package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const stateCookie = "oauth_state"

// signValue computes an HMAC signature for value and appends it using the
// format value|signature. The signature is base64 URL encoded so it can be
// safely stored in cookies.
func signValue(value string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	sig := mac.Sum(nil)
	return value + "|" + base64.RawURLEncoding.EncodeToString(sig)
}

// verifyValue checks the HMAC signature appended to signed. It returns the
// original value and true when the signature matches the provided key.
func verifyValue(signed string, key []byte) (string, bool) {
	parts := strings.Split(signed, "|")
	if len(parts) != 2 {
		return "", false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(parts[0]))
	expected := mac.Sum(nil)
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || !hmac.Equal(expected, sig) {
		return "", false
	}
	return parts[0], true
}

// publicUser is the user shape returned by registration.
type publicUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Login authenticates a local user by email and password.
func (app *Application) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Missing required fields: email, password")
		return
	}
	u, err := app.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		app.respondError(w, r, err, "Login failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		// accessToken is always present for login, null when Spotify is not
		// connected.
		"user": map[string]any{
			"id":          u.ID,
			"displayName": u.DisplayName,
			"email":       u.Email,
			"accessToken": u.AccessToken,
		},
	})
}

// Register creates a local account.
func (app *Application) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
		Password    string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Missing required fields: displayName, email, password")
		return
	}
	u, err := app.Auth.Register(r.Context(), req.DisplayName, req.Email, req.Password)
	if err != nil {
		app.respondError(w, r, err, "Registration failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Registration successful",
		"user":    publicUser{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email},
	})
}

// SpotifyLogin begins the Spotify OAuth flow and redirects the user to the
// authorization URL with a signed state value stored in a cookie.
func (app *Application) SpotifyLogin(w http.ResponseWriter, r *http.Request) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    signValue(state, app.SignKey),
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, app.Auth.AuthURL(state), http.StatusFound)
}

// OAuthCallback completes the Spotify OAuth flow. The state query parameter
// must match the signed cookie set by SpotifyLogin.
func (app *Application) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(stateCookie)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	state, ok := verifyValue(c.Value, app.SignKey)
	if !ok || r.URL.Query().Get("state") != state {
		respondJSONError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	if e := r.URL.Query().Get("error"); e != "" {
		app.Log.WithField("provider_error", e).Warn("spotify authorization denied")
		respondJSONError(w, http.StatusBadRequest, "Spotify authorization was denied")
		return
	}

	u, err := app.Auth.Callback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		app.respondError(w, r, err, "Login failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    u,
	})
}
