package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("ZOHO_CLIENT_ID", "client-id")
	t.Setenv("ZOHO_CLIENT_SECRET", "client-secret")
	t.Setenv("ZOHO_REFRESH_TOKEN", "refresh-token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("ZOHO_ACCESS_TOKEN", "")
	t.Setenv("ZOHO_API_DOMAIN", "")
	t.Setenv("ZOHO_ACCOUNTS_URL", "")
	t.Setenv("ZOHO_API_PATH", "")
	t.Setenv("ZOHO_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "client-id", cfg.ClientID)
	assert.Equal(t, "client-secret", cfg.ClientSecret)
	assert.Equal(t, "refresh-token", cfg.RefreshToken)
	assert.Empty(t, cfg.AccessToken)
	assert.Empty(t, cfg.APIDomain)
	assert.Equal(t, DefaultAccountsURL, cfg.AccountsURL)
	assert.Equal(t, DefaultAPIPath, cfg.APIPath)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ZOHO_ACCESS_TOKEN", "1000.abc")
	t.Setenv("ZOHO_API_DOMAIN", "https://www.zohoapis.eu")
	t.Setenv("ZOHO_ACCOUNTS_URL", "https://accounts.zoho.eu")
	t.Setenv("ZOHO_API_PATH", "/crm/v3")
	t.Setenv("ZOHO_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1000.abc", cfg.AccessToken)
	assert.Equal(t, "https://www.zohoapis.eu", cfg.APIDomain)
	assert.Equal(t, "https://accounts.zoho.eu", cfg.AccountsURL)
	assert.Equal(t, "/crm/v3", cfg.APIPath)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("ZOHO_TIMEOUT", "thirty")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZOHO_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		cfg     Config
		wantErr string
	}{
		"missing client id": {
			cfg:     Config{ClientSecret: "s", RefreshToken: "r", Timeout: time.Second},
			wantErr: "ZOHO_CLIENT_ID is required",
		},
		"missing client secret": {
			cfg:     Config{ClientID: "c", RefreshToken: "r", Timeout: time.Second},
			wantErr: "ZOHO_CLIENT_SECRET is required",
		},
		"missing refresh token": {
			cfg:     Config{ClientID: "c", ClientSecret: "s", Timeout: time.Second},
			wantErr: "ZOHO_REFRESH_TOKEN is required",
		},
		"zero timeout": {
			cfg:     Config{ClientID: "c", ClientSecret: "s", RefreshToken: "r"},
			wantErr: "ZOHO_TIMEOUT must be positive",
		},
		"valid": {
			cfg: Config{ClientID: "c", ClientSecret: "s", RefreshToken: "r", Timeout: time.Second},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantErr, err.Error())
		})
	}
}
