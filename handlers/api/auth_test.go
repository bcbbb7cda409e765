package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replydeck/config"
)

func testAuthConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.BaseURL = "https://replydeck.test"
	cfg.OAuth.ClientID = "client-1"
	cfg.OAuth.ClientSecret = "secret-1"
	cfg.OAuth.TokenURL = "https://auth.test.com/token"
	cfg.OAuth.UserinfoURL = "https://auth.test.com/userinfo"
	return cfg
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("dana@example.com", "Dana Reyes", "signing-secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token, "signing-secret")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", claims.Email)
	assert.Equal(t, "Dana Reyes", claims.Name)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("dana@example.com", "Dana", "signing-secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := GenerateToken("dana@example.com", "Dana", "signing-secret", -time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "signing-secret")
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken("not-a-token", "signing-secret")
	assert.Error(t, err)
}

func TestOAuthTokens_Expired(t *testing.T) {
	assert.False(t, (&OAuthTokens{}).Expired(), "zero expiry means the provider gave no lifetime")
	assert.False(t, (&OAuthTokens{Expiry: time.Now().Add(time.Hour)}).Expired())
	assert.True(t, (&OAuthTokens{Expiry: time.Now().Add(30 * time.Second)}).Expired(), "inside the skew window")
	assert.True(t, (&OAuthTokens{Expiry: time.Now().Add(-time.Minute)}).Expired())
}

func TestExchangeCode(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cfg := testAuthConfig()

	httpmock.RegisterResponder("POST", "https://auth.test.com/token",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "authorization_code", req.Form.Get("grant_type"))
			assert.Equal(t, "code-123", req.Form.Get("code"))
			assert.Equal(t, "client-1", req.Form.Get("client_id"))
			assert.Equal(t, "https://replydeck.test/auth/callback", req.Form.Get("redirect_uri"))
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"expires_in":    3600,
				"token_type":    "Bearer",
			})
		})

	tokens, err := ExchangeCode(context.Background(), cfg, "code-123")

	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tokens.Expiry, 5*time.Second)
}

func TestExchangeCode_Rejected(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cfg := testAuthConfig()

	httpmock.RegisterResponder("POST", "https://auth.test.com/token",
		httpmock.NewJsonResponderOrPanic(400, map[string]interface{}{"error": "invalid_grant"}))

	_, err := ExchangeCode(context.Background(), cfg, "expired-code")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestExchangeCode_EndpointDown(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cfg := testAuthConfig()

	httpmock.RegisterResponder("POST", "https://auth.test.com/token",
		httpmock.NewStringResponder(502, "Bad Gateway"))

	_, err := ExchangeCode(context.Background(), cfg, "code-123")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshTokens_KeepsRefreshToken(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cfg := testAuthConfig()

	httpmock.RegisterResponder("POST", "https://auth.test.com/token",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "refresh_token", req.Form.Get("grant_type"))
			assert.Equal(t, "refresh-1", req.Form.Get("refresh_token"))
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"access_token": "access-2",
				"expires_in":   3600,
			})
		})

	tokens, err := RefreshTokens(context.Background(), cfg, "refresh-1")

	require.NoError(t, err)
	assert.Equal(t, "access-2", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken, "provider omitting the refresh token keeps the old one")
}

func TestFetchProfile(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cfg := testAuthConfig()

	httpmock.RegisterResponder("GET", "https://auth.test.com/userinfo",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer access-1", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"email": "dana@example.com",
				"name":  "Dana Reyes",
			})
		})

	profile, err := FetchProfile(context.Background(), cfg, "access-1")

	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", profile.Email)
	assert.Equal(t, "Dana Reyes", profile.Name)
}

func TestFetchProfile_MissingEmail(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cfg := testAuthConfig()

	httpmock.RegisterResponder("GET", "https://auth.test.com/userinfo",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{"name": "Dana"}))

	_, err := FetchProfile(context.Background(), cfg, "access-1")
	assert.Error(t, err)
}

func TestSealAndOpenTokens(t *testing.T) {
	tokens := &OAuthTokens{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}

	sealed, err := SealTokens(tokens, "session-secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access-1", "sealed blob must not leak the token")

	opened, err := OpenTokens(sealed, "session-secret")
	require.NoError(t, err)
	assert.Equal(t, tokens.AccessToken, opened.AccessToken)
	assert.Equal(t, tokens.RefreshToken, opened.RefreshToken)
	assert.True(t, tokens.Expiry.Equal(opened.Expiry))
}

func TestOpenTokens_WrongSecret(t *testing.T) {
	sealed, err := SealTokens(&OAuthTokens{AccessToken: "access-1"}, "session-secret")
	require.NoError(t, err)

	_, err = OpenTokens(sealed, "other-secret")
	assert.Error(t, err)
}

func TestOpenTokens_Tampered(t *testing.T) {
	sealed, err := SealTokens(&OAuthTokens{AccessToken: "access-1"}, "session-secret")
	require.NoError(t, err)

	tampered := "A" + sealed[1:]
	_, err = OpenTokens(tampered, "session-secret")
	assert.Error(t, err)

	_, err = OpenTokens("short", "session-secret")
	assert.Error(t, err)
}
