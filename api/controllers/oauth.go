package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/blingbridge/api/responses"
	"github.com/angelmondragon/blingbridge/api/validators"
	"github.com/angelmondragon/blingbridge/internal/tokens"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

const maxAuthorizationCode = 512

type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*tokens.Credential, error)
}

type TokenRefresher interface {
	ForceRefresh(ctx context.Context) (*tokens.Credential, error)
}

// TokenService is the OAuth surface behind the callback and manual refresh.
type TokenService interface {
	CodeExchanger
	TokenRefresher
}

type callbackResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message,omitempty"`
	RedirectURL      string `json:"redirect_url,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type refreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token,omitempty"`
	Expires     int64  `json:"expires,omitempty"`
	Error       string `json:"error,omitempty"`
}

// OAuthCallback completes the Bling authorization flow. Provider errors are
// returned verbatim. Browsers are redirected to successURL when one is set.
func OAuthCallback(svc CodeExchanger, successURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteJSON(w, http.StatusInternalServerError, callbackResponse{Error: "token service unavailable"})
			return
		}

		if providerErr := validators.QueryParam(r, "error", maxAuthorizationCode); providerErr != "" {
			description := validators.QueryParam(r, "error_description", 0)
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "provider_error", providerErr), "bling authorization denied")
			}
			responses.WriteJSON(w, http.StatusBadRequest, callbackResponse{Error: providerErr, ErrorDescription: description})
			return
		}

		code := validators.QueryParam(r, "code", maxAuthorizationCode)
		if code == "" {
			responses.WriteJSON(w, http.StatusBadRequest, callbackResponse{Error: "invalid_request", ErrorDescription: "authorization code is required"})
			return
		}

		if _, err := svc.ExchangeCode(ctx, code); err != nil {
			responses.LogError(ctx, logg, err)
			status := http.StatusInternalServerError
			if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) || pkgerrors.Is(err, pkgerrors.CodeValidation) {
				status = http.StatusBadRequest
			}
			responses.WriteJSON(w, status, callbackResponse{
				Error:            providerErrorCode(err),
				ErrorDescription: pkgerrors.MessageOf(err),
			})
			return
		}

		if successURL != "" && wantsHTML(r) {
			http.Redirect(w, r, successURL, http.StatusFound)
			return
		}
		responses.WriteJSON(w, http.StatusOK, callbackResponse{
			Success:     true,
			Message:     "Bling authorization completed",
			RedirectURL: successURL,
		})
	}
}

// RefreshToken forces a token rotation on operator request.
func RefreshToken(svc TokenRefresher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteJSON(w, http.StatusInternalServerError, refreshResponse{Error: "token service unavailable"})
			return
		}

		cred, err := svc.ForceRefresh(ctx)
		if err != nil {
			responses.LogError(ctx, logg, err)
			responses.WriteJSON(w, responses.StatusFor(err), refreshResponse{Error: pkgerrors.MessageOf(err)})
			return
		}

		resp := refreshResponse{Success: true, AccessToken: cred.AccessToken}
		if !cred.ExpiresAt.IsZero() {
			resp.Expires = cred.ExpiresAt.Unix()
		}
		responses.WriteJSON(w, http.StatusOK, resp)
	}
}

func providerErrorCode(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		if details, ok := typed.Details().(map[string]any); ok {
			if code, ok := details["error"].(string); ok && code != "" {
				return code
			}
		}
		return strings.ToLower(string(typed.Code()))
	}
	return "server_error"
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
