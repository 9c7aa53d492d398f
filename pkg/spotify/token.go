package spotify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
)

// Scopes requested during login: the email address for the profile and the
// right to create public and private playlists.
var Scopes = []string{
	spotify.ScopeUserReadEmail,
	spotify.ScopePlaylistModifyPublic,
	spotify.ScopePlaylistModifyPrivate,
}

// Tokens is the result of a successful authorization code exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// OAuth2 returns t as an oauth2.Token.
func (t *Tokens) OAuth2() *oauth2.Token {
	return &oauth2.Token{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, Expiry: t.Expiry, TokenType: "Bearer"}
}

func oauthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotify.AuthURL,
			TokenURL:  spotify.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// TokenService builds authorize URLs and exchanges authorization codes for
// tokens at Spotify's accounts service.
type TokenService struct {
	config *oauth2.Config
	http   *http.Client
	log    logrus.FieldLogger
}

// NewTokenService configures the service for the given client registration.
// Client credentials are sent with HTTP Basic authentication.
func NewTokenService(clientID, clientSecret, redirectURL string, timeout time.Duration, log logrus.FieldLogger) *TokenService {
	return &TokenService{
		config: oauthConfig(clientID, clientSecret, redirectURL),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// WithEndpoint overrides the authorize and token URLs. It is used to point the
// service at a test server.
func (s *TokenService) WithEndpoint(authURL, tokenURL string) *TokenService {
	s.config.Endpoint.AuthURL = authURL
	s.config.Endpoint.TokenURL = tokenURL
	return s
}

// RedirectURL returns the configured callback address.
func (s *TokenService) RedirectURL() string { return s.config.RedirectURL }

// AuthURL returns the Spotify authorize URL carrying state.
func (s *TokenService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens. It never returns an error:
// failures are logged and signalled by a nil result.
func (s *TokenService) Exchange(ctx context.Context, code, redirectURI string) *Tokens {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	tok, err := s.config.Exchange(ctx, code, opts...)
	if err != nil {
		entry := s.log.WithError(err)
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			entry = entry.WithField("provider_body", string(re.Body))
		}
		entry.Warn("spotify token exchange failed")
		return nil
	}
	return &Tokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}
}
