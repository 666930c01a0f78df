// internal/app/broker/groww/groww.go
package groww

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// Provider is the token-store key for this broker.
const Provider = "groww"

// ErrNoCredentials is returned when neither a static token nor OAuth
// client credentials are configured.
var ErrNoCredentials = errors.New("groww credentials not configured")

// TokenSource is where the client caches its access token so every
// worker process shares one credential.
type TokenSource interface {
	Get(ctx context.Context, provider string) (models.BrokerToken, error)
	Save(ctx context.Context, provider, accessToken string, expiresAt *time.Time) error
}

// Config holds Groww API settings. BaseURL and TokenURL default to the
// public endpoints; tests point them at local servers.
type Config struct {
	BaseURL      string
	APIToken     string // static access token, used as-is when set
	ClientID     string
	ClientSecret string
	TokenURL     string
	MaxRetries   int           // per-path attempts for the option chain, default 3
	RetryBackoff time.Duration // base backoff between attempts, default 800ms
}

// Client fetches quotes and option chains from Groww's market data API.
// The API is served under several path generations depending on account
// tier, so every fetch walks a candidate list until one answers.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens TokenSource
	log    *zap.Logger
}

// Quote is a loosely structured market snapshot. Raw carries whatever
// the endpoint returned; LTP is extracted from it when recognizable.
type Quote struct {
	Symbol string         `json:"symbol"`
	LTP    float64        `json:"ltp"`
	Raw    map[string]any `json:"raw"`
}

// New creates a Groww client.
func New(cfg Config, ts TokenSource, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groww.in"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = cfg.BaseURL + "/v1/api/token"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 800 * time.Millisecond
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		tokens: ts,
		log:    logger,
	}
}

// token resolves an access token: stored first, then the static config
// token, then an OAuth2 client-credentials grant. Whatever succeeds is
// written back to the store.
func (c *Client) token(ctx context.Context) (string, error) {
	if tok, err := c.tokens.Get(ctx, Provider); err == nil {
		return tok.AccessToken, nil
	}

	if c.cfg.APIToken != "" {
		if err := c.tokens.Save(ctx, Provider, c.cfg.APIToken, nil); err != nil {
			c.log.Warn("could not cache static groww token", zap.Error(err))
		}
		return c.cfg.APIToken, nil
	}

	return c.RefreshToken(ctx)
}

// RefreshToken fetches a fresh token with the client-credentials grant
// and stores it. Called on a schedule so the stored token never goes
// stale mid-poll.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		if c.cfg.APIToken != "" {
			// Static tokens cannot be refreshed; re-store so a wiped
			// collection recovers.
			if err := c.tokens.Save(ctx, Provider, c.cfg.APIToken, nil); err != nil {
				return "", err
			}
			return c.cfg.APIToken, nil
		}
		return "", ErrNoCredentials
	}

	cc := &clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		return "", fmt.Errorf("groww token grant: %w", err)
	}

	var expiresAt *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		expiresAt = &e
	}
	if err := c.tokens.Save(ctx, Provider, tok.AccessToken, expiresAt); err != nil {
		return "", fmt.Errorf("persist groww token: %w", err)
	}
	c.log.Info("groww token refreshed", zap.Timep("expires_at", expiresAt))
	return tok.AccessToken, nil
}

// quotePaths are tried in order; older accounts answer on older paths.
var quotePaths = []string{
	"/v1/api/stocks_data/v2/quotes",
	"/v1/stocks_data/quotes",
	"/v1/api/market/quotes",
}

// Quote fetches a market snapshot for symbol. A 404 moves on to the
// next candidate path, any other 4xx aborts (bad token or request),
// and 5xx or transport errors fall through to the next path.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, path := range quotePaths {
		u := c.cfg.BaseURL + path + "?symbol=" + url.QueryEscape(symbol)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if c.cfg.ClientID != "" {
			req.Header.Set("X-Client-Id", c.cfg.ClientID)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			c.log.Debug("groww quote path not found, trying next", zap.String("path", path))
			lastErr = fmt.Errorf("404 for %s", path)
			continue
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, fmt.Errorf("groww quote %s: status %d: %s", path, resp.StatusCode, trim(body, 200))
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("groww quote %s: status %d", path, resp.StatusCode)
			continue
		}

		raw := map[string]any{}
		if err := json.Unmarshal(body, &raw); err != nil {
			lastErr = fmt.Errorf("groww quote %s: bad JSON: %w", path, err)
			continue
		}
		return &Quote{Symbol: symbol, LTP: extractLTP(raw), Raw: raw}, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("no groww quote endpoints to try")
}

// chainPaths are the known generations of the option chain endpoint.
var chainPaths = []string{
	"/v1/option-chain/%s",
	"/v1/option-chain",
	"/option-chain/%s",
	"/option-chain",
	"/v1/market-data/option-chain/%s",
	"/v1/marketdata/option-chain/%s",
	"/v2/option-chain/%s",
}

// OptionChain fetches and normalizes the option chain for symbol.
// expiry, when non-empty, is passed through as a query filter. Rate
// limits and transport hiccups are retried per path with growing
// backoff before moving on.
func (c *Client) OptionChain(ctx context.Context, symbol, expiry string) (*models.OptionChain, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, pattern := range chainPaths {
		path := pattern
		if containsVerb(pattern) {
			path = fmt.Sprintf(pattern, url.PathEscape(symbol))
		}
		u := c.cfg.BaseURL + path
		if expiry != "" {
			u += "?expiry=" + url.QueryEscape(expiry)
		}

		body, err := c.getWithRetries(ctx, u, token)
		if err != nil {
			lastErr = err
			continue
		}

		raw := map[string]any{}
		if err := json.Unmarshal(body, &raw); err != nil {
			lastErr = fmt.Errorf("non-object JSON from %s", path)
			continue
		}
		if apiErr := envelopeError(raw); apiErr != "" {
			lastErr = fmt.Errorf("api error at %s: %s", path, apiErr)
			continue
		}

		chain := normalizeChain(raw, symbol)
		return chain, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return &models.OptionChain{
		Symbol:    symbol,
		Timestamp: time.Now().In(models.IST),
		CE:        []models.OptionLeg{},
		PE:        []models.OptionLeg{},
	}, nil
}

// getWithRetries fetches u, retrying 429s and transport failures up to
// cfg.MaxRetries with backoff*(attempt+1), doubling the base each time.
// Other HTTP errors abort the path immediately.
func (c *Client) getWithRetries(ctx context.Context, u, token string) ([]byte, error) {
	backoff := c.cfg.RetryBackoff
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if err := sleepCtx(ctx, backoff*time.Duration(attempt+1)); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			if err := sleepCtx(ctx, backoff*time.Duration(attempt+1)); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited at %s", u)
			if err := sleepCtx(ctx, backoff*time.Duration(attempt+1)); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("status %d from %s", resp.StatusCode, u)
		}
		return body, nil
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func containsVerb(pattern string) bool {
	for i := 0; i+1 < len(pattern); i++ {
		if pattern[i] == '%' && pattern[i+1] == 's' {
			return true
		}
	}
	return false
}

func trim(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
