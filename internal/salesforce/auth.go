// OAuth refresh-token flow for the Salesforce REST API.
//
// Salesforce does not hand out new refresh tokens on each grant; the access
// token rotates and is considered stale after ~2 hours. Refreshed tokens are
// persisted back to the config file so consecutive runs reuse them.
package salesforce

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/crmbridge/target-salesforce/internal/shared"
	"golang.org/x/oauth2"
)

// tokenLifetime is how long an issued access token is trusted before a
// refresh is forced. Salesforce session timeout defaults to 2h; 7000s leaves
// headroom for long-running record batches.
const tokenLifetime = 7000 * time.Second

// Authenticator manages the access token for a Salesforce connected app.
type Authenticator struct {
	mu     sync.Mutex
	config *shared.Config
	oauth  *oauth2.Config
	logger *log.Logger
}

// NewAuthenticator creates an Authenticator for the given config.
func NewAuthenticator(config *shared.Config, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	oauth := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  config.AuthEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return &Authenticator{config: config, oauth: oauth, logger: logger}
}

// Token returns a valid access token, refreshing it first when stale.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tokenValid() {
		return a.config.AccessToken, nil
	}

	if err := a.refresh(ctx); err != nil {
		return "", err
	}
	return a.config.AccessToken, nil
}

// InstanceURL returns the org instance URL, refreshing the token if it is not known yet.
func (a *Authenticator) InstanceURL(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.config.InstanceURL != "" && a.tokenValid() {
		return a.config.InstanceURL, nil
	}

	if err := a.refresh(ctx); err != nil {
		return "", err
	}
	return a.config.InstanceURL, nil
}

// Refresh forces a token refresh regardless of the cached token's age.
func (a *Authenticator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refresh(ctx)
}

// TokenAge reports how long ago the current access token was issued.
func (a *Authenticator) TokenAge() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.config.AccessToken == "" || a.config.IssuedAt == 0 {
		return 0, false
	}
	issued := time.UnixMilli(a.config.IssuedAt)
	return time.Since(issued), true
}

// tokenValid reports whether the cached access token is still usable.
// Callers must hold a.mu.
func (a *Authenticator) tokenValid() bool {
	if a.config.AccessToken == "" || a.config.IssuedAt == 0 {
		return false
	}
	if a.config.InstanceURL == "" {
		return false
	}
	issued := time.UnixMilli(a.config.IssuedAt)
	return time.Since(issued) < tokenLifetime
}

// refresh performs the refresh-token grant and persists the rotated token.
// Callers must hold a.mu.
func (a *Authenticator) refresh(ctx context.Context) error {
	if a.config.RefreshToken == "" {
		return fmt.Errorf("%w: refresh_token", shared.ErrMissingCredentials)
	}

	source := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: a.config.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	a.config.AccessToken = token.AccessToken

	if instanceURL, ok := token.Extra("instance_url").(string); ok && instanceURL != "" {
		a.config.InstanceURL = instanceURL
	}
	if a.config.InstanceURL == "" {
		return fmt.Errorf("%w: token response missing instance_url", shared.ErrAuthFailed)
	}

	a.config.IssuedAt = issuedAtMillis(token)

	a.logger.Info("OAuth authorization attempt was successful", "instance_url", a.config.InstanceURL)

	if a.config.Path() != "" {
		if err := a.config.Save(); err != nil {
			a.logger.Warn("failed to persist refreshed token", "err", err)
		}
	}
	return nil
}

// issuedAtMillis extracts Salesforce's issued_at extra, falling back to now.
func issuedAtMillis(token *oauth2.Token) int64 {
	switch v := token.Extra("issued_at").(type) {
	case string:
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return ms
		}
	case float64:
		return int64(v)
	}
	return time.Now().UnixMilli()
}
