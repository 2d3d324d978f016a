package zohocrm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CRMClient defines the interface for Zoho CRM API operations
type CRMClient interface {
	// FetchToken exchanges the refresh token for a new access token
	FetchToken(ctx context.Context) (*TokenRecord, error)

	// ResetToken drops the cached access token
	ResetToken()

	HasToken() bool
	AccessToken() string
	APIDomain() string
	AbbreviatedAccessToken() string

	Timeout() time.Duration
	SetTimeout(timeout time.Duration)

	// Call performs one authenticated request and returns the raw body
	Call(ctx context.Context, req Request) ([]byte, error)

	Logger() *zap.Logger
}

var _ CRMClient = (*Client)(nil)
