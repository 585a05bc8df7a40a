package client

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/adform-stats-client/pkg/tokencache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var adformTokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "adform_token_refreshes_total",
	Help: "Total bearer token acquisitions by source and result",
}, []string{"source", "result"})

// Credential is the bearer token attached to every request.
type Credential struct {
	AccessToken string

	// Expiry is zero for tokens of unknown lifetime.
	Expiry time.Time
}

// ClientCredentials identify an API client for the client-credentials grant.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string

	// Scope overrides Config.Scope when set.
	Scope string
}

// cachedLogin records a credential that Login took from the token cache.
type cachedLogin struct {
	key         tokencache.Key
	creds       ClientCredentials
	accessToken string
}

// SetCredential replaces the bearer token with a pre-issued one.
func (c *Client) SetCredential(accessToken string) {
	c.cached.Store(nil)
	c.credential.Store(&Credential{AccessToken: accessToken})
}

// Credential returns the current bearer credential.
func (c *Client) Credential() Credential {
	if cred := c.credential.Load(); cred != nil {
		return *cred
	}
	return Credential{}
}

// RefreshCredential exchanges client id and secret for a fresh bearer token
// at the token endpoint and installs it. Any failure is ErrAuthenticationFailed;
// the previous credential stays in place.
func (c *Client) RefreshCredential(ctx context.Context, creds ClientCredentials) error {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return NewAPIError(ErrAuthenticationFailed, "client id and client secret are required")
	}

	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     c.config.TokenURL,
		Scopes:       []string{c.scopeFor(creds)},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// route the token request through our http.Client
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := cc.Token(tokenCtx)
	if err != nil {
		adformTokenRefreshesTotal.WithLabelValues("token_endpoint", "failure").Inc()

		apiErr := &APIError{
			Kind:    ErrAuthenticationFailed,
			Message: "login failed, please check your credentials",
			Err:     err,
		}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			if retrieveErr.Response != nil {
				apiErr.StatusCode = retrieveErr.Response.StatusCode
			}
			apiErr.Body = Snippet(retrieveErr.Body)
		}

		c.logger.Error().
			Err(err).
			Int("status_code", apiErr.StatusCode).
			Str("client_id", creds.ClientID).
			Msg("Token refresh failed")
		return apiErr
	}

	c.cached.Store(nil)
	c.credential.Store(&Credential{AccessToken: token.AccessToken, Expiry: token.Expiry})
	adformTokenRefreshesTotal.WithLabelValues("token_endpoint", "success").Inc()

	c.logger.Info().
		Str("client_id", creds.ClientID).
		Time("expiry", token.Expiry).
		Msg("Bearer token refreshed")

	return nil
}

// Login installs a bearer token for creds, reusing a cached one when the
// token cache holds a live entry and refreshing otherwise.
func (c *Client) Login(ctx context.Context, creds ClientCredentials) error {
	key := c.cacheKey(creds)

	if c.tokens != nil {
		entry, err := c.tokens.Get(ctx, key)
		switch {
		case err == nil:
			c.credential.Store(&Credential{AccessToken: entry.AccessToken, Expiry: entry.Expiry})
			c.cached.Store(&cachedLogin{key: key, creds: creds, accessToken: entry.AccessToken})
			adformTokenRefreshesTotal.WithLabelValues("cache", "success").Inc()
			c.logger.Debug().
				Str("client_id", creds.ClientID).
				Dur("ttl", entry.TTL()).
				Msg("Using cached bearer token")
			return nil
		case !errors.Is(err, tokencache.ErrCacheMiss):
			c.logger.Warn().Err(err).Msg("Token cache get error")
		}
	}

	return c.refreshAndStore(ctx, key, creds)
}

// refreshAndStore refreshes the credential and writes it to the token cache.
// Cache write failures are logged only.
func (c *Client) refreshAndStore(ctx context.Context, key tokencache.Key, creds ClientCredentials) error {
	if err := c.RefreshCredential(ctx, creds); err != nil {
		return err
	}

	if c.tokens != nil {
		cred := c.Credential()
		entry := &tokencache.Entry{
			AccessToken: cred.AccessToken,
			Expiry:      cred.Expiry,
			CachedAt:    time.Now(),
		}
		if err := c.tokens.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache bearer token")
		}
	}

	return nil
}

// replaceCachedCredential evicts a rejected cached token and logs in again.
// It reports false when the current credential did not come from the cache,
// so each cached token gets one replacement at most.
func (c *Client) replaceCachedCredential(ctx context.Context) (bool, error) {
	login := c.cached.Swap(nil)
	if login == nil || c.Credential().AccessToken != login.accessToken {
		return false, nil
	}

	adformTokenRefreshesTotal.WithLabelValues("cache", "rejected").Inc()
	c.logger.Warn().
		Str("client_id", login.creds.ClientID).
		Msg("Cached bearer token rejected, logging in again")

	if err := c.tokens.Delete(ctx, login.key); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to evict cached bearer token")
	}

	if err := c.refreshAndStore(ctx, login.key, login.creds); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) cacheKey(creds ClientCredentials) tokencache.Key {
	return tokencache.Key{
		TokenURL: c.config.TokenURL,
		ClientID: creds.ClientID,
		Scope:    c.scopeFor(creds),
	}
}

func (c *Client) scopeFor(creds ClientCredentials) string {
	if creds.Scope != "" {
		return creds.Scope
	}
	return c.config.Scope
}
