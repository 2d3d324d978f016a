package zohocrm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/natserract/zoho/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testToken = "1000.0d12345678abcdef.9fe1"

// fakeZoho serves both the accounts token endpoint and the CRM data
// endpoints from one server, counting requests to each.
type fakeZoho struct {
	server      *httptest.Server
	tokenCalls  int32
	dataCalls   int32
	tokenBody   func(domain string) string
	dataHandler http.HandlerFunc
}

func newFakeZoho(t *testing.T, dataHandler http.HandlerFunc) *fakeZoho {
	return newFakeZohoWithToken(t, nil, dataHandler)
}

// newFakeZohoWithToken lets the test choose the token endpoint body; nil
// serves a valid token whose api_domain points back at the fake.
func newFakeZohoWithToken(t *testing.T, tokenBody func(domain string) string, dataHandler http.HandlerFunc) *fakeZoho {
	t.Helper()
	if tokenBody == nil {
		tokenBody = func(domain string) string {
			return `{"access_token":"` + testToken + `","api_domain":"` + domain + `","token_type":"Bearer","expires_in":3600}`
		}
	}
	f := &fakeZoho{
		dataHandler: dataHandler,
		tokenBody:   tokenBody,
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v2/token" {
			atomic.AddInt32(&f.tokenCalls, 1)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
			assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
			assert.Equal(t, "refresh-token", r.PostForm.Get("refresh_token"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, f.tokenBody(f.server.URL))
			return
		}
		atomic.AddInt32(&f.dataCalls, 1)
		f.dataHandler(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeZoho) config() *config.Config {
	return &config.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
		AccountsURL:  f.server.URL,
		APIPath:      config.DefaultAPIPath,
		Timeout:      5 * time.Second,
	}
}

func (f *fakeZoho) client(t *testing.T) *Client {
	return NewWithLogger(f.config(), zaptest.NewLogger(t))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewWithLogger_Defaults(t *testing.T) {
	client := NewWithLogger(&config.Config{ClientID: "c", ClientSecret: "s", RefreshToken: "r"}, zaptest.NewLogger(t))

	assert.Equal(t, 30*time.Second, client.Timeout())
	assert.False(t, client.HasToken())
	assert.Empty(t, client.AccessToken())
	assert.Empty(t, client.APIDomain())
	assert.Empty(t, client.AbbreviatedAccessToken())
	assert.Equal(t, config.DefaultAccountsURL, client.accountsURL)
	assert.Equal(t, config.DefaultAPIPath, client.apiPath)

	client.SetTimeout(3 * time.Second)
	assert.Equal(t, 3*time.Second, client.Timeout())
}

func TestNewWithLogger_PresetToken(t *testing.T) {
	cfg := &config.Config{
		ClientID: "c", ClientSecret: "s", RefreshToken: "r",
		AccessToken: testToken, APIDomain: "https://www.zohoapis.com",
	}
	client := NewWithLogger(cfg, zaptest.NewLogger(t))
	assert.True(t, client.HasToken())
	assert.Equal(t, testToken, client.AccessToken())
	assert.Equal(t, "https://www.zohoapis.com", client.APIDomain())

	// A token without a domain cannot route requests, so it is not used.
	cfg.APIDomain = ""
	client = NewWithLogger(cfg, zaptest.NewLogger(t))
	assert.False(t, client.HasToken())
}

func TestAbbreviatedAccessToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{token: "", want: ""},
		{token: "1000.abcdefgh1234", want: "1000.abcd..1234"},
		{token: "abcdefghijklm", want: "abcdefghi..jklm"},
		{token: "short", want: ".."},
		{token: testToken, want: "1000.0d12..9fe1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, abbreviate(tt.token), "token %q", tt.token)
	}
}

func TestFetchToken_Success(t *testing.T) {
	fake := newFakeZoho(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("data endpoint should not be called")
	})
	client := fake.client(t)

	record, err := client.FetchToken(context.Background())
	require.NoError(t, err)
	require.NotNil(t, record.AccessToken)
	assert.Equal(t, testToken, *record.AccessToken)
	assert.Equal(t, fake.server.URL, *record.APIDomain)
	assert.Equal(t, "Bearer", *record.TokenType)
	assert.Equal(t, time.Hour, record.Lifetime())

	assert.True(t, client.HasToken())
	assert.Equal(t, testToken, client.AccessToken())
	assert.Equal(t, fake.server.URL, client.APIDomain())
	assert.Equal(t, "1000.0d12..9fe1", client.AbbreviatedAccessToken())

	// The returned record is a copy.
	*record.AccessToken = "tampered"
	assert.Equal(t, testToken, client.AccessToken())
}

func TestFetchToken_AuthError(t *testing.T) {
	fake := newFakeZohoWithToken(t, func(string) string { return `{"error":"invalid_token"}` }, nil)
	client := fake.client(t)

	_, err := client.FetchToken(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "invalid_token", authErr.Message)
	assert.Equal(t, "invalid_token", err.Error())
	assert.False(t, client.HasToken())
}

func TestFetchToken_NoTokenReceived(t *testing.T) {
	fake := newFakeZohoWithToken(t, func(domain string) string { return `{"api_domain":"` + domain + `","token_type":"Bearer"}` }, nil)
	client := fake.client(t)

	_, err := client.FetchToken(context.Background())
	assert.ErrorIs(t, err, ErrNoTokenReceived)
	assert.False(t, client.HasToken())
}

func TestFetchToken_FailureKeepsCachedToken(t *testing.T) {
	fake := newFakeZohoWithToken(t, func(string) string { return `{"error":"invalid_code"}` }, nil)

	cfg := fake.config()
	cfg.AccessToken = testToken
	cfg.APIDomain = "https://www.zohoapis.com"
	client := NewWithLogger(cfg, zaptest.NewLogger(t))

	_, err := client.FetchToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, testToken, client.AccessToken())
	assert.Equal(t, "https://www.zohoapis.com", client.APIDomain())
}

func TestFetchToken_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewWithLogger(&config.Config{
		ClientID: "c", ClientSecret: "s", RefreshToken: "r",
		AccountsURL: server.URL, Timeout: time.Second,
	}, zaptest.NewLogger(t))

	_, err := client.FetchToken(context.Background())
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "fetch token", transportErr.Op)
}

func TestLazyTokenFetch_ExactlyOnce(t *testing.T) {
	var fake *fakeZoho
	fake = newFakeZoho(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int32(1), atomic.LoadInt32(&fake.tokenCalls), "token must be fetched before data")
		assert.Equal(t, "Zoho-oauthtoken "+testToken, r.Header.Get("Authorization"))
		assert.Equal(t, "/crm/v2/Accounts/1", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"data":[{"id":"1","Account_Name":"Acme"}]}`)
	})
	client := fake.client(t)

	acct, err := GetOne[account](context.Background(), client, "Accounts", "1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", acct.AccountName)

	_, err = GetOne[account](context.Background(), client, "Accounts", "1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.tokenCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.dataCalls))
	assert.Equal(t, testToken, client.AccessToken())
	assert.Equal(t, fake.server.URL, client.APIDomain())
}

func TestPresetToken_NoFetch(t *testing.T) {
	fake := newFakeZoho(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-oauthtoken preset-token-value", r.Header.Get("Authorization"))
		if r.Method == http.MethodPost {
			writeJSON(w, http.StatusCreated, `{"data":[{"code":"SUCCESS","details":{"id":"9","Created_Time":"2019-05-02T11:17:33+05:30","Modified_Time":"2019-05-02T11:17:33+05:30"},"message":"record added","status":"success"}]}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"data":[{"id":"1"}],"info":{"count":1,"more_records":false,"page":1,"per_page":200}}`)
	})
	cfg := fake.config()
	cfg.AccessToken = "preset-token-value"
	cfg.APIDomain = fake.server.URL
	client := NewWithLogger(cfg, zaptest.NewLogger(t))

	_, err := GetPage[account](context.Background(), client, "Accounts", "")
	require.NoError(t, err)
	results, err := InsertMany(context.Background(), client, "Accounts", []account{{AccountName: "Acme"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "9", results[0].Details.Success.ID)

	assert.Zero(t, atomic.LoadInt32(&fake.tokenCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.dataCalls))
}

func TestStaleToken_NotRefreshed(t *testing.T) {
	fake := newFakeZoho(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"code":"INVALID_TOKEN","details":{},"message":"invalid oauth token","status":"error"}`)
	})
	cfg := fake.config()
	cfg.AccessToken = "expired-token-value"
	cfg.APIDomain = fake.server.URL
	client := NewWithLogger(cfg, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		_, err := GetOne[account](context.Background(), client, "Leads", "1")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	assert.Zero(t, atomic.LoadInt32(&fake.tokenCalls), "a rejected token is never refreshed implicitly")
	assert.Equal(t, "expired-token-value", client.AccessToken())

	// Explicit reset is the way back to a fresh token.
	client.ResetToken()
	assert.False(t, client.HasToken())
	_, _ = GetOne[account](context.Background(), client, "Leads", "1")
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.tokenCalls))
	assert.Equal(t, testToken, client.AccessToken())
}

func TestCall_TokenFailurePropagates(t *testing.T) {
	fake := newFakeZohoWithToken(t, func(string) string { return `{"error":"invalid_client"}` }, func(w http.ResponseWriter, r *http.Request) {
		t.Error("data endpoint should not be called without a token")
	})
	client := fake.client(t)

	_, err := GetPage[account](context.Background(), client, "Leads", "")
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "invalid_client", authErr.Message)
}

func TestCall_MissingAPIDomain(t *testing.T) {
	fake := newFakeZohoWithToken(t, func(string) string {
		return `{"access_token":"` + testToken + `","token_type":"Bearer","expires_in":3600}`
	}, func(w http.ResponseWriter, r *http.Request) {
		t.Error("data endpoint should not be called without a domain")
	})
	client := fake.client(t)

	_, err := GetPage[account](context.Background(), client, "Leads", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZOHO_API_DOMAIN")
	assert.True(t, client.HasToken())
}

func TestCall_RequiresModule(t *testing.T) {
	client := NewWithLogger(&config.Config{ClientID: "c", ClientSecret: "s", RefreshToken: "r"}, zaptest.NewLogger(t))
	_, err := client.Call(context.Background(), Request{Method: http.MethodGet})
	assert.Error(t, err)
}

func TestTokenRecord_JSONFieldNames(t *testing.T) {
	var record TokenRecord
	require.NoError(t, json.Unmarshal([]byte(`{"access_token":"a","api_domain":"d","token_type":"Bearer","expires_in_sec":3600,"expires_in":3600000}`), &record))
	assert.Equal(t, "a", *record.AccessToken)
	assert.Equal(t, "d", *record.APIDomain)
	assert.Equal(t, time.Hour, record.Lifetime())
	assert.Nil(t, record.Error)
	assert.Nil(t, (*TokenRecord)(nil).Copy())
}
