package tokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/blingbridge/internal/options"
	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

type fakeEndpoint struct {
	mu           sync.Mutex
	refreshCalls int
	exchangeCode string
	refreshErr   error
	delay        time.Duration
	seq          int
	seenRefresh  []string
}

func (f *fakeEndpoint) Exchange(_ context.Context, code string) (*bling.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeCode = code
	return &bling.Token{AccessToken: "at-0", RefreshToken: "rt-0", ExpiresIn: 21600}, nil
}

func (f *fakeEndpoint) Refresh(_ context.Context, refreshToken string) (*bling.Token, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	f.seenRefresh = append(f.seenRefresh, refreshToken)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.seq++
	return &bling.Token{
		AccessToken:  "at-" + string(rune('0'+f.seq)),
		RefreshToken: "rt-" + string(rune('0'+f.seq)),
		ExpiresIn:    21600,
	}, nil
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (c *countingRecorder) RecordTokenRefresh(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[outcome]++
}

type fixture struct {
	svc      *Service
	store    *Store
	endpoint *fakeEndpoint
	recorder *countingRecorder
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		endpoint: &fakeEndpoint{},
		recorder: &countingRecorder{},
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.store = NewStore(options.NewRepository(dbtest.Open(t)), "client", "secret")
	svc, err := NewService(ServiceParams{
		Store:    f.store,
		Endpoint: f.endpoint,
		Logger:   logger.Nop(),
		Recorder: f.recorder,
		Clock:    func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seed(t *testing.T, access, refresh string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}))
}

func TestAccessTokenWithoutCredentialIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AccessToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}

func TestAccessTokenReturnsValidToken(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "at-valid", "rt-valid", f.now.Add(time.Hour))

	token, err := f.svc.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-valid", token)
	assert.Zero(t, f.endpoint.refreshCalls)
}

func TestAccessTokenRefreshesExpiredCredential(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "at-old", "rt-old", f.now.Add(-time.Minute))

	token, err := f.svc.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)
	assert.Equal(t, []string{"rt-old"}, f.endpoint.seenRefresh)

	stored, err := f.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rt-1", stored.RefreshToken)
	assert.Equal(t, f.now.Add(6*time.Hour), stored.ExpiresAt.UTC())
	assert.Equal(t, "client", stored.ClientID)
	assert.Equal(t, "secret", stored.ClientSecret)
}

func TestAccessTokenFallsBackToStaleWhenRefreshFails(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "at-old", "rt-old", f.now.Add(-time.Minute))
	f.endpoint.refreshErr = pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid refresh token")

	token, err := f.svc.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-old", token)
}

func TestRefreshFailureKeepsExistingCredential(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "at-old", "rt-old", f.now.Add(time.Hour))
	f.endpoint.refreshErr = errors.New("invalid_grant")

	_, err := f.svc.Refresh(context.Background(), "at-old")
	require.Error(t, err)

	stored, err := f.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-old", stored.AccessToken)
	assert.Equal(t, "rt-old", stored.RefreshToken)
	assert.Equal(t, 1, f.recorder.outcomes["failed"])
}

func TestRefreshWithRotatedStaleTokenSkipsProvider(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "at-old", "rt-old", f.now.Add(time.Hour))
	ctx := context.Background()

	first, err := f.svc.Refresh(ctx, "at-old")
	require.NoError(t, err)
	second, err := f.svc.Refresh(ctx, "at-old")
	require.NoError(t, err)

	assert.Equal(t, "at-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.endpoint.refreshCalls)
	assert.Equal(t, 1, f.recorder.outcomes["reused"])
}

func TestConcurrentRefreshesCallProviderOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "at-old", "rt-old", f.now.Add(time.Hour))
	f.endpoint.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := f.svc.Refresh(context.Background(), "at-old")
			assert.NoError(t, err)
			results[i] = token
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.endpoint.refreshCalls)
	for _, token := range results {
		assert.Equal(t, "at-1", token)
	}
}

func TestForceRefreshAlwaysCallsProvider(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "at-old", "rt-old", f.now.Add(time.Hour))

	cred, err := f.svc.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-1", cred.AccessToken)

	cred, err = f.svc.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-2", cred.AccessToken)
	assert.Equal(t, []string{"rt-old", "rt-1"}, f.endpoint.seenRefresh)
}

func TestExchangeCodePersistsCredential(t *testing.T) {
	f := newFixture(t)

	cred, err := f.svc.ExchangeCode(context.Background(), "code-123")
	require.NoError(t, err)
	assert.Equal(t, "code-123", f.endpoint.exchangeCode)
	assert.Equal(t, "at-0", cred.AccessToken)

	token, err := f.svc.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-0", token)
}

func TestCredentialExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, Credential{}.Expired(now))
	assert.True(t, Credential{ExpiresAt: now.Add(10 * time.Second)}.Expired(now))
	assert.False(t, Credential{ExpiresAt: now.Add(time.Hour)}.Expired(now))
}
