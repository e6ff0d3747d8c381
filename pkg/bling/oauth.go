package bling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/angelmondragon/blingbridge/pkg/config"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

var (
	errClientIDRequired     = errors.New("bling client id is required")
	errClientSecretRequired = errors.New("bling client secret is required")
	errTokenURLRequired     = errors.New("bling token url is required")
)

// Token is the token endpoint response.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// OAuthClient talks to the Bling token endpoint using client credentials in a
// Basic authorization header and form-encoded grants.
type OAuthClient struct {
	http         *resty.Client
	clientID     string
	clientSecret string
	tokenURL     string
	redirectURL  string
	logger       *logger.Logger
}

func NewOAuthClient(cfg config.BlingConfig, logg *logger.Logger) (*OAuthClient, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientSecret == "" {
		return nil, errClientSecretRequired
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		return nil, errTokenURLRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OAuthClient{
		http:         resty.New().SetTimeout(timeout).SetRetryCount(0),
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		redirectURL:  strings.TrimSpace(cfg.RedirectURL),
		logger:       logg,
	}, nil
}

// ClientID returns the configured OAuth client id.
func (o *OAuthClient) ClientID() string { return o.clientID }

// ClientSecret returns the configured OAuth client secret.
func (o *OAuthClient) ClientSecret() string { return o.clientSecret }

// Exchange trades an authorization code for the initial token pair.
func (o *OAuthClient) Exchange(ctx context.Context, code string) (*Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization code is required")
	}
	form := map[string]string{
		"grant_type": "authorization_code",
		"code":       code,
	}
	if o.redirectURL != "" {
		form["redirect_uri"] = o.redirectURL
	}
	return o.requestToken(ctx, "exchange_code", form)
}

// Refresh rotates the token pair. The previous refresh token is invalid afterwards.
func (o *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh token is not available")
	}
	return o.requestToken(ctx, "refresh_token", map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
}

func (o *OAuthClient) requestToken(ctx context.Context, op string, form map[string]string) (*Token, error) {
	resp, err := o.http.R().
		SetContext(ctx).
		SetBasicAuth(o.clientID, o.clientSecret).
		SetHeader("Accept", "1.0").
		SetFormData(form).
		Post(o.tokenURL)
	if err != nil {
		ctx = o.logger.WithField(ctx, "operation", op)
		o.logger.Error(ctx, "bling token endpoint unreachable", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, fmt.Sprintf("bling %s transport failure", op))
	}

	var token Token
	if resp.StatusCode() == http.StatusOK {
		if err := json.Unmarshal(resp.Body(), &token); err == nil && token.AccessToken != "" {
			return &token, nil
		}
	}

	apiErr := parseAPIError(resp.Body())
	message := apiErr.Text()
	if message == "" {
		message = fmt.Sprintf("bling %s failed with status %d", op, resp.StatusCode())
	}
	details := map[string]any{"status": resp.StatusCode()}
	if apiErr.Type != "" {
		details["error"] = apiErr.Type
	}
	ctx = o.logger.WithFields(ctx, map[string]any{"operation": op, "status": resp.StatusCode()})
	o.logger.Warn(ctx, "bling token request rejected")
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, message).WithDetails(details)
}
