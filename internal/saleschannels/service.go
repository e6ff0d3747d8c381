package saleschannels

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/logger"
	"github.com/angelmondragon/blingbridge/pkg/redis"
)

const (
	DefaultTTL    = time.Hour
	fallbackLabel = "WooCommerce"
)

// Client is the subset of the Bling gateway used for channel lookups.
type Client interface {
	GetSalesChannel(ctx context.Context, id int64) (*bling.SalesChannel, error)
	ListSalesChannels(ctx context.Context) ([]bling.SalesChannel, error)
}

// Cache is satisfied by *redis.Client.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Channel is the resolved label attached to invoices.
type Channel struct {
	ID          int64
	Description string
	Fallback    bool
}

type ServiceParams struct {
	Client   Client
	Cache    Cache
	Logger   *logger.Logger
	TTL      time.Duration
	StoreURL string
	Clock    func() time.Time
}

// Service resolves sales channels through a best-effort cache.
type Service struct {
	client   Client
	cache    Cache
	logg     *logger.Logger
	ttl      time.Duration
	storeURL string
	now      func() time.Time
}

type cacheEntry[T any] struct {
	Value    T         `json:"value"`
	CachedAt time.Time `json:"cached_at"`
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Client == nil {
		return nil, errors.New("bling client required")
	}
	if params.Cache == nil {
		return nil, errors.New("cache required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		client:   params.Client,
		cache:    params.Cache,
		logg:     params.Logger,
		ttl:      ttl,
		storeURL: params.StoreURL,
		now:      clock,
	}, nil
}

// Resolve never fails: a lookup error yields the label derived from the storefront URL.
func (s *Service) Resolve(ctx context.Context, id int64) Channel {
	key := s.cache.CacheKey("sales_channel", strconv.FormatInt(id, 10))

	var cached bling.SalesChannel
	if loadEntry(ctx, s, key, &cached) {
		return Channel{ID: id, Description: cached.Description}
	}

	channel, err := s.client.GetSalesChannel(ctx, id)
	if err != nil || channel == nil || strings.TrimSpace(channel.Description) == "" {
		ctx = s.logg.WithField(ctx, "sales_channel_id", id)
		if err != nil {
			ctx = s.logg.WithField(ctx, "error", err.Error())
		}
		s.logg.Warn(ctx, "sales channel lookup failed; using fallback label")
		return Channel{ID: id, Description: FallbackLabel(s.storeURL), Fallback: true}
	}

	s.store(ctx, key, *channel)
	return Channel{ID: id, Description: channel.Description}
}

// List returns every channel, cached for the configured TTL.
func (s *Service) List(ctx context.Context) ([]bling.SalesChannel, error) {
	key := s.cache.CacheKey("sales_channels")

	var cached []bling.SalesChannel
	if loadEntry(ctx, s, key, &cached) {
		return cached, nil
	}

	channels, err := s.client.ListSalesChannels(ctx)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []bling.SalesChannel{}
	}
	s.store(ctx, key, channels)
	return channels, nil
}

func loadEntry[T any](ctx context.Context, s *Service, key string, dst *T) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !redis.IsNil(err) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "sales channel cache read failed")
		}
		return false
	}
	var entry cacheEntry[T]
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return false
	}
	if s.now().Sub(entry.CachedAt) >= s.ttl {
		return false
	}
	*dst = entry.Value
	return true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(cacheEntry[any]{Value: value, CachedAt: s.now()})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), s.ttl); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "sales channel cache write failed")
	}
}

// FallbackLabel builds the channel label from the storefront host.
func FallbackLabel(storeURL string) string {
	raw := strings.TrimSpace(storeURL)
	if raw == "" {
		return fallbackLabel
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return fallbackLabel
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	return fallbackLabel + " - " + host
}
