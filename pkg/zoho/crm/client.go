// Package zohocrm provides a client for the Zoho CRM REST API (v2).
//
// The client owns a refresh-token credential and exchanges it for a
// short-lived access token on first use. The access token and the API
// domain returned with it are cached and reused by every later call until
// ResetToken is called. A rejected or expired token is never refreshed
// automatically: the call fails with an APIError that matches
// ErrInvalidToken, and the caller decides whether to reset and retry.
//
// Reads and writes are exposed as generic functions (GetOne, GetPage,
// InsertMany, UpdateMany) so records decode straight into caller types.
package zohocrm

import (
	"strings"
	"sync"
	"time"

	"github.com/natserract/zoho/pkg/config"
	httpclient "github.com/natserract/zoho/pkg/http"
	"go.uber.org/zap"
)

const authScheme = "Zoho-oauthtoken"

// Client is the Zoho CRM API client. It is not meant for concurrent use
// before a token is cached: two calls racing on an empty cache each fetch
// a token and the last one written wins. Both tokens are valid, so the
// race only wastes a request.
type Client struct {
	clientID     string
	clientSecret string
	refreshToken string
	accountsURL  string
	apiPath      string
	apiDomain    string

	mu      sync.RWMutex
	session *session

	httpClient *httpclient.Client
	logger     *zap.Logger
}

// session is the HasToken state; a nil *session is NoToken.
type session struct {
	accessToken string
	apiDomain   string
}

// New creates a new Zoho CRM client with default production logger
func New(cfg *config.Config) *Client {
	logger, _ := zap.NewProduction()
	return NewWithLogger(cfg, logger)
}

// NewWithLogger creates a new Zoho CRM client with a custom logger
func NewWithLogger(cfg *config.Config, logger *zap.Logger) *Client {
	c := &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		refreshToken: cfg.RefreshToken,
		accountsURL:  strings.TrimSuffix(orDefault(cfg.AccountsURL, config.DefaultAccountsURL), "/"),
		apiPath:      orDefault(cfg.APIPath, config.DefaultAPIPath),
		apiDomain:    cfg.APIDomain,
		httpClient:   httpclient.NewClientWithLogger(logger),
		logger:       logger,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	c.httpClient.SetTimeout(timeout)

	switch {
	case cfg.AccessToken != "" && cfg.APIDomain != "":
		c.session = &session{accessToken: cfg.AccessToken, apiDomain: cfg.APIDomain}
	case cfg.AccessToken != "":
		logger.Warn("Ignoring preset access token without API domain; a new token will be fetched")
	}

	return c
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout()
}

// SetTimeout sets the per-request timeout for subsequent calls.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.SetTimeout(timeout)
}

// HasToken reports whether an access token is cached.
func (c *Client) HasToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// AccessToken returns the cached access token, or "" when none is cached.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.accessToken
}

// APIDomain returns the cached API domain, or "" when none is cached.
func (c *Client) APIDomain() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.apiDomain
}

// AbbreviatedAccessToken returns the cached token as "<first 9>..<last 4>",
// safe for logs. It returns "" when no token is cached.
func (c *Client) AbbreviatedAccessToken() string {
	return abbreviate(c.AccessToken())
}

// ResetToken drops the cached token; the next call fetches a new one.
func (c *Client) ResetToken() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.logger.Info("Access token reset")
}

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger {
	return c.logger
}

func abbreviate(token string) string {
	switch {
	case token == "":
		return ""
	case len(token) < 13:
		return ".."
	}
	return token[:9] + ".." + token[len(token)-4:]
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
