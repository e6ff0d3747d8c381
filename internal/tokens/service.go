package tokens

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

const refreshFlightKey = "bling_credential"

// CredentialStore persists the OAuth credential.
type CredentialStore interface {
	Get(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred Credential) error
}

// TokenEndpoint is the provider token endpoint.
type TokenEndpoint interface {
	Exchange(ctx context.Context, code string) (*bling.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*bling.Token, error)
}

// RefreshRecorder counts refresh outcomes.
type RefreshRecorder interface {
	RecordTokenRefresh(outcome string)
}

type ServiceParams struct {
	Store    CredentialStore
	Endpoint TokenEndpoint
	Logger   *logger.Logger
	Recorder RefreshRecorder
	Clock    func() time.Time
}

// Service owns the credential lifecycle and provides bearer tokens to the
// Bling gateway. Refreshes are single-flighted process-wide.
type Service struct {
	store    CredentialStore
	endpoint TokenEndpoint
	logg     *logger.Logger
	recorder RefreshRecorder
	now      func() time.Time
	group    singleflight.Group
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, errors.New("credential store required")
	}
	if params.Endpoint == nil {
		return nil, errors.New("token endpoint required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:    params.Store,
		endpoint: params.Endpoint,
		logg:     params.Logger,
		recorder: params.Recorder,
		now:      clock,
	}, nil
}

// AccessToken returns a usable access token, refreshing first when the stored
// one has expired. When that refresh fails the stale token is still returned
// and the gateway's 401 path takes over.
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	cred, err := s.store.Get(ctx)
	if err != nil {
		return "", err
	}
	if !cred.Expired(s.now()) {
		return cred.AccessToken, nil
	}

	fresh, err := s.refresh(ctx, cred.AccessToken, false)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "proactive bling token refresh failed; using stale token")
		return cred.AccessToken, nil
	}
	return fresh.AccessToken, nil
}

// Refresh rotates the credential after stale was rejected. If another caller
// already rotated it, the current token is returned without contacting Bling.
func (s *Service) Refresh(ctx context.Context, stale string) (string, error) {
	cred, err := s.refresh(ctx, stale, false)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// ForceRefresh always calls the token endpoint.
func (s *Service) ForceRefresh(ctx context.Context) (*Credential, error) {
	return s.refresh(ctx, "", true)
}

// ExchangeCode completes the OAuth authorization and persists the first credential.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	token, err := s.endpoint.Exchange(ctx, code)
	if err != nil {
		s.record("exchange_failed")
		return nil, err
	}
	cred := credentialFromToken(Credential{}, token, s.now())
	if err := s.store.Save(ctx, cred); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist bling credential")
	}
	s.record("exchanged")
	s.logg.Info(ctx, "bling authorization completed")
	return &cred, nil
}

func (s *Service) refresh(ctx context.Context, stale string, force bool) (*Credential, error) {
	v, err, shared := s.group.Do(refreshFlightKey, func() (any, error) {
		current, err := s.store.Get(ctx)
		if err != nil {
			return nil, err
		}
		now := s.now()
		if !force && stale != "" && current.AccessToken != stale && !current.Expired(now) {
			s.record("reused")
			return current, nil
		}

		token, err := s.endpoint.Refresh(ctx, current.RefreshToken)
		if err != nil {
			s.record("failed")
			s.logg.Error(ctx, "bling token refresh failed", err)
			return nil, err
		}

		next := credentialFromToken(*current, token, now)
		if err := s.store.Save(ctx, next); err != nil {
			s.record("failed")
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist refreshed bling credential")
		}
		s.record("refreshed")
		s.logg.Info(s.logg.WithField(ctx, "expires_at", next.ExpiresAt), "bling token refreshed")
		return &next, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logg.Debug(ctx, "joined in-flight bling token refresh")
	}
	cred := *(v.(*Credential))
	return &cred, nil
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordTokenRefresh(outcome)
	}
}

func credentialFromToken(prev Credential, token *bling.Token, now time.Time) Credential {
	next := prev
	next.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		next.RefreshToken = token.RefreshToken
	}
	next.ExpiresAt = time.Time{}
	if token.ExpiresIn > 0 {
		next.ExpiresAt = now.Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	next.UpdatedAt = now
	return next
}
