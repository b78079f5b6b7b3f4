package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/navaarsync/navaar/internal/server"
	"github.com/navaarsync/navaar/internal/shared"
)

var spotifyOAuthEndpoint = oauth2.Endpoint{
	AuthURL: "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

const spotifyScopes = "playlist-read-private playlist-modify-private playlist-modify-public"

// authCommand drives the one-shot Spotify OAuth bootstrap: start a local
// callback server, open the consent page, wait for the redirect, and
// persist the resulting tokens to the config file.
//
// Grounded on original_source/scripts/spotify_auth.py, re-expressed over
// the original internal/server.OAuthHandler/BasicRouter instead of a
// bespoke http.HandleFunc callback.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name: "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name: "spotify",
				Usage: "Authenticate with Spotify using OAuth2",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					config := r.loadConfig(cmd.String("config"))
					return r.spotifyAuth(ctx, config, cmd.String("config"))
				},
			},
		},
	}
}

func (r *Runner) spotifyAuth(ctx context.Context, config *shared.Config, configPath string) error {
	sp := config.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id/client_secret must be set in %s", shared.ErrMissingCredentials, configPath)
	}
	if sp.RedirectURI == "" {
		sp.RedirectURI = "http://localhost:8888/callback"
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate oauth state: %w", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID: sp.ClientID,
		ClientSecret: sp.ClientSecret,
		RedirectURL: sp.RedirectURI,
		Scopes: []string{spotifyScopes},
		Endpoint: spotifyOAuthEndpoint,
	}

	handler := server.NewOAuthHandler(oauthConfig, state)
	router := server.NewBasicRouter()
	router.Handler(handler)

	httpSrv := &http.Server{Addr: ":8888", Handler: router}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("oauth callback server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	r.writePlain("Open the following URL to authorize Navaar with Spotify:\n%s\n", authURL)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
	}

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		config.Credentials.Spotify.AccessToken = result.Token.AccessToken
		config.Credentials.Spotify.RefreshToken = result.Token.RefreshToken
		if err := shared.SaveConfig(configPath, config); err != nil {
			return fmt.Errorf("failed to save tokens: %w", err)
		}
		return r.writePlain("Authentication successful; tokens saved to %s\n", configPath)
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("%w: timed out waiting for spotify callback", shared.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
