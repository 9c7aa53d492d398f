// This file holds the JSON request and response helpers shared by the
// handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"Mood-Playlist-Go/pkg/apperr"
)

// decodeJSON reads the request body into v. The body is limited to 1MB and
// unknown fields are rejected so typos in field names surface as 400s.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1MB
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.New("empty body")
		}
		return err
	}
	if dec.More() {
		return errors.New("extra data in request body")
	}
	return nil
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondJSONError writes {"error": message}.
func respondJSONError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondError maps an orchestrator error to its status and client message.
// The cause is logged and never sent to the client.
func (app *Application) respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := apperr.StatusCode(err)
	entry := app.Log.WithError(err).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": status,
		"kind":   apperr.KindOf(err).String(),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	respondJSONError(w, status, apperr.Message(err, fallback))
}
