// Package mood maps the mood and language keywords chosen by users onto the
// parameters understood by Spotify's recommendation endpoint. Lookups are
// case-insensitive and never fail: unknown keywords fall back to neutral
// defaults.
package mood

import (
	"sort"
	"strings"
)

const (
	// DefaultValence is used for moods missing from the table.
	DefaultValence = 0.5
	// DefaultGenre is used for languages missing from the table.
	DefaultGenre = "pop"
)

var valences = map[string]float64{
	"sad":       0.2,
	"happy":     0.9,
	"chill":     0.5,
	"energetic": 0.8,
	"romantic":  0.6,
}

var genres = map[string]string{
	"hindi":   "indian",
	"punjabi": "punjabi",
	"english": "pop",
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Valence returns the target valence in [0,1] for the given mood.
func Valence(mood string) float64 {
	if v, ok := valences[normalize(mood)]; ok {
		return v
	}
	return DefaultValence
}

// Genre returns the Spotify genre seed for the given language.
func Genre(language string) string {
	if g, ok := genres[normalize(language)]; ok {
		return g
	}
	return DefaultGenre
}

// Moods lists the supported mood keywords in alphabetical order.
func Moods() []string { return sortedKeys(valences) }

// Languages lists the supported language keywords in alphabetical order.
func Languages() []string { return sortedKeys(genres) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
