package zohocrm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// tokenRequest is the refresh-token grant, sent form encoded.
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// FetchToken exchanges the refresh token for a new access token. On success
// the token and API domain replace whatever was cached and a copy of the
// parsed record is returned. On failure the cached state is left untouched.
func (c *Client) FetchToken(ctx context.Context) (*TokenRecord, error) {
	url := fmt.Sprintf("%s/oauth/v2/token", c.accountsURL)
	c.logger.Info("Fetching Zoho access token", zap.String("url", url))

	req := tokenRequest{
		GrantType:    "refresh_token",
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RefreshToken: c.refreshToken,
	}

	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	}

	resp, err := c.httpClient.Post(ctx, url, headers, req)
	if err != nil {
		c.logger.Error("Token request failed", zap.Error(err), zap.String("url", url))
		return nil, &TransportError{Op: "fetch token", Err: err}
	}

	outcome := parseTokenResponse(resp.Body)
	if err := outcome.Err(); err != nil {
		c.logger.Error("Token exchange failed",
			zap.Int("status_code", resp.StatusCode),
			zap.Stringer("outcome", outcome.Kind),
			zap.Error(err))
		return nil, err
	}

	record := outcome.Value
	next := &session{
		accessToken: *record.AccessToken,
		apiDomain:   c.apiDomain,
	}
	if record.APIDomain != nil && *record.APIDomain != "" {
		next.apiDomain = *record.APIDomain
	}

	c.mu.Lock()
	c.session = next
	c.mu.Unlock()

	c.logger.Info("Successfully fetched access token",
		zap.String("access_token", abbreviate(next.accessToken)),
		zap.String("api_domain", next.apiDomain),
		zap.Duration("expires_in", record.Lifetime()))

	return record.Copy(), nil
}

// ensureSession returns the cached session, fetching a token first when
// none is cached.
func (c *Client) ensureSession(ctx context.Context) (session, error) {
	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()
	if current != nil {
		return *current, nil
	}

	c.logger.Debug("No access token cached, fetching one")
	if _, err := c.FetchToken(ctx); err != nil {
		return session{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return session{}, ErrNoTokenReceived
	}
	return *c.session, nil
}
