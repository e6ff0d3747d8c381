package bling

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/blingbridge/pkg/config"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

func newTestOAuth(t *testing.T, tokenURL string) *OAuthClient {
	t.Helper()
	client, err := NewOAuthClient(config.BlingConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     tokenURL,
		RedirectURL:  "https://store.example.com/auth/callback",
	}, logger.Nop())
	require.NoError(t, err)
	return client
}

func TestExchangeSendsBasicAuthAndForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc", r.PostForm.Get("code"))
		assert.Equal(t, "https://store.example.com/auth/callback", r.PostForm.Get("redirect_uri"))
		_, _ = io.WriteString(w, `{"access_token":"at","refresh_token":"rt","expires_in":21600,"token_type":"Bearer","scope":"98309"}`)
	}))
	defer srv.Close()

	token, err := newTestOAuth(t, srv.URL).Exchange(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "rt", token.RefreshToken)
	assert.Equal(t, int64(21600), token.ExpiresIn)
}

func TestRefreshSurfacesProviderDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-rt", r.PostForm.Get("refresh_token"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_grant","message":"invalid_grant","description":"Invalid refresh token"}}`)
	}))
	defer srv.Close()

	_, err := newTestOAuth(t, srv.URL).Refresh(context.Background(), "old-rt")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
	assert.Equal(t, "Invalid refresh token", typed.Message())
	assert.Equal(t, "invalid_grant", typed.Details().(map[string]any)["error"])
}

func TestRefreshParsesStandardOAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client","error_description":"Client authentication failed"}`)
	}))
	defer srv.Close()

	_, err := newTestOAuth(t, srv.URL).Refresh(context.Background(), "rt")
	require.Error(t, err)
	assert.Equal(t, "Client authentication failed", pkgerrors.MessageOf(err))
}

func TestOKWithoutAccessTokenIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"refresh_token":"rt"}`)
	}))
	defer srv.Close()

	_, err := newTestOAuth(t, srv.URL).Refresh(context.Background(), "rt")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}

func TestRefreshWithoutTokenFailsFast(t *testing.T) {
	client := newTestOAuth(t, "http://127.0.0.1:1")
	_, err := client.Refresh(context.Background(), "")
	require.Error(t, err)
	_, err = client.Exchange(context.Background(), "")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestNewOAuthClientRequiresCredentials(t *testing.T) {
	_, err := NewOAuthClient(config.BlingConfig{ClientSecret: "s", TokenURL: "u"}, logger.Nop())
	assert.Error(t, err)
	_, err = NewOAuthClient(config.BlingConfig{ClientID: "c", TokenURL: "u"}, logger.Nop())
	assert.Error(t, err)
}
