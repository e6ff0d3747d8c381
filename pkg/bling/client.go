package bling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/angelmondragon/blingbridge/pkg/config"
	pkgerrors "github.com/angelmondragon/blingbridge/pkg/errors"
	"github.com/angelmondragon/blingbridge/pkg/logger"
)

const defaultTimeout = 30 * time.Second

var (
	errBaseURLRequired       = errors.New("bling base url is required")
	errTokenProviderRequired = errors.New("bling token provider is required")
	errLoggerRequired        = errors.New("bling logger is required")
)

// TokenProvider supplies bearer tokens to the gateway. Refresh receives the
// token that was rejected so concurrent callers can share one rotation.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context, stale string) (string, error)
}

// Observer receives per-request timings.
type Observer interface {
	ObserveBlingRequest(operation string, status int, elapsed time.Duration)
}

// Client is the API gateway to Bling v3. Every call carries a bearer token and a
// single refresh-then-retry is attempted when Bling answers 401.
type Client struct {
	http     *resty.Client
	tokens   TokenProvider
	logger   *logger.Logger
	observer Observer
}

type Option func(*Client)

// WithObserver attaches a request observer (metrics).
func WithObserver(obs Observer) Option {
	return func(c *Client) { c.observer = obs }
}

// WithTransport swaps the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.SetTransport(rt) }
}

// NewClient builds the gateway from configuration.
func NewClient(cfg config.BlingConfig, tokens TokenProvider, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if tokens == nil {
		return nil, errTokenProviderRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	c := &Client{
		http:   httpClient,
		tokens: tokens,
		logger: logg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "bling credential unavailable")
	}

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return err
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		fresh, refreshErr := c.tokens.Refresh(ctx, token)
		if refreshErr != nil {
			c.log(ctx, "error", req.op, map[string]any{"stage": "refresh", "error": refreshErr.Error()})
			return c.mapResponseError(resp, req.op)
		}
		c.log(ctx, "retry", req.op, map[string]any{"reason": "unauthorized"})
		resp, err = c.send(ctx, req, fresh)
		if err != nil {
			return err
		}
	}

	if resp.IsError() {
		mapped := c.mapResponseError(resp, req.op)
		c.log(ctx, "error", req.op, map[string]any{"status": resp.StatusCode(), "error": mapped.Error()})
		return mapped
	}

	c.log(ctx, "response", req.op, map[string]any{"status": resp.StatusCode()})
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("bling %s returned an unreadable body", req.op))
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request, token string) (*resty.Response, error) {
	r := c.http.R().
		SetContext(ctx).
		SetAuthToken(token)
	if len(req.query) > 0 {
		r.SetQueryParamsFromValues(req.query)
	}
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.body)
	}

	c.log(ctx, "request", req.op, map[string]any{"method": req.method, "path": req.path})
	start := time.Now()
	resp, err := r.Execute(req.method, req.path)
	elapsed := time.Since(start)

	if err != nil {
		c.observe(req.op, 0, elapsed)
		c.log(ctx, "error", req.op, map[string]any{"stage": "transport", "error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, fmt.Sprintf("bling %s transport failure", req.op))
	}
	c.observe(req.op, resp.StatusCode(), elapsed)
	return resp, nil
}

func (c *Client) observe(op string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveBlingRequest(op, status, elapsed)
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Warn(ctx, fmt.Sprintf("bling %s failed", op))
	default:
		c.logger.Debug(ctx, fmt.Sprintf("bling %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "authorization", "document", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapResponseError(resp *resty.Response, op string) error {
	status := resp.StatusCode()
	apiErr := parseAPIError(resp.Body())

	message := apiErr.Text()
	if message == "" {
		message = fmt.Sprintf("bling %s failed with status %d", op, status)
	}

	details := map[string]any{"status": status}
	if apiErr.Type != "" {
		details["type"] = apiErr.Type
	}
	if len(apiErr.Fields) > 0 {
		details["fields"] = apiErr.Fields
	}
	return pkgerrors.New(domainCodeForStatus(status), message).WithDetails(details)
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeUpstream
		}
		return pkgerrors.CodeDependency
	}
}
