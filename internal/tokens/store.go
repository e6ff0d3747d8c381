package tokens

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
)

const credentialOption = "bling_oauth_credential"

// expirySkew treats a token as expired slightly before Bling does.
const expirySkew = 30 * time.Second

// Credential is the OAuth credential set used for every Bling call. The client
// secret comes from configuration and is never persisted.
type Credential struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"-"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token must be refreshed before use.
func (c Credential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(c.ExpiresAt)
}

// OptionStore is the persistence surface the token store needs.
type OptionStore interface {
	GetJSON(ctx context.Context, name string, dst any) (bool, error)
	SetJSON(ctx context.Context, name string, value any) error
}

// Store persists the credential in the option table.
type Store struct {
	options      OptionStore
	clientID     string
	clientSecret string
}

func NewStore(options OptionStore, clientID, clientSecret string) *Store {
	return &Store{options: options, clientID: clientID, clientSecret: clientSecret}
}

// Get loads the credential. A store that was never authorized yields an
// UNAUTHORIZED error.
func (s *Store) Get(ctx context.Context) (*Credential, error) {
	var cred Credential
	ok, err := s.options.GetJSON(ctx, credentialOption, &cred)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load bling credential")
	}
	if !ok || cred.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "bling is not connected; complete the OAuth authorization first")
	}
	if cred.ClientID == "" {
		cred.ClientID = s.clientID
	}
	cred.ClientSecret = s.clientSecret
	return &cred, nil
}

func (s *Store) Save(ctx context.Context, cred Credential) error {
	if cred.ClientID == "" {
		cred.ClientID = s.clientID
	}
	if err := s.options.SetJSON(ctx, credentialOption, cred); err != nil {
		return fmt.Errorf("save bling credential: %w", err)
	}
	return nil
}
