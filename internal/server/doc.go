// Package server provides the HTTP surfaces navaar exposes: the
// always-on observability API (see api.go) and the one-shot OAuth
// callback server the `auth spotify` CLI command spins up locally.
//
// # Router infrastructure
//
// The [Router] interface and its [BasicRouter] implementation back the
// OAuth callback server, where a plain [http.ServeMux] with a short
// middleware chain is all that's needed. The always-on observability
// API is large enough to want go-chi's subrouting instead, so [API]
// builds its own chi.Router rather than going through [BasicRouter].
//
// # OAuth callback handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback:
// it validates the CSRF state parameter, exchanges the code for
// tokens, and delivers the result over a channel to the CLI command
// that's blocked waiting on it. It processes at most one callback.
package server
