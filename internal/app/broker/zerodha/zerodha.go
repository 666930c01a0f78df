// internal/app/broker/zerodha/zerodha.go
package zerodha

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// Provider is the token-store key for this broker.
const Provider = "zerodha"

// ErrNotAuthenticated is returned when no Kite session exists. Callers
// surface it as a prompt to run the /connect/zerodha flow.
var ErrNotAuthenticated = errors.New("zerodha not authenticated")

// TokenSource is where the client reads and writes its access token.
// *tokens.Store satisfies it; tests substitute a fake.
type TokenSource interface {
	Get(ctx context.Context, provider string) (models.BrokerToken, error)
	Save(ctx context.Context, provider, accessToken string, expiresAt *time.Time) error
}

// Config holds the Kite Connect app credentials.
type Config struct {
	APIKey    string
	APISecret string
	// Simulate short-circuits PlaceOrder with a synthetic order ID so
	// the whole pipeline can run without touching a live account.
	Simulate bool
	// BaseURL and LoginBaseURL default to the public Kite endpoints.
	BaseURL      string
	LoginBaseURL string
}

// Client talks to the Kite Connect REST API.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens TokenSource
	log    *zap.Logger
}

// OrderParams is a fully validated order ready for the wire.
type OrderParams struct {
	Exchange        string
	TradingSymbol   string
	TransactionType string
	Qty             int
	Product         string
	OrderType       string
	Price           float64
}

// Position is one net position as Kite reports it.
type Position struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	Product       string  `json:"product"`
	Quantity      int     `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
}

// Margins is the equity segment margin summary.
type Margins struct {
	Net       float64 `json:"net"`
	Available struct {
		Cash        float64 `json:"cash"`
		LiveBalance float64 `json:"live_balance"`
	} `json:"available"`
}

// New creates a Kite client. Endpoint overrides in cfg are for tests.
func New(cfg Config, ts TokenSource, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.kite.trade"
	}
	if cfg.LoginBaseURL == "" {
		cfg.LoginBaseURL = "https://kite.zerodha.com"
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		tokens: ts,
		log:    logger,
	}
}

// LoginURL is where a human starts the daily Kite login.
func (c *Client) LoginURL() string {
	return fmt.Sprintf("%s/connect/login?v=3&api_key=%s", c.cfg.LoginBaseURL, url.QueryEscape(c.cfg.APIKey))
}

// ExchangeToken trades the request_token from the login redirect for an
// access token and persists it. The checksum is the SHA-256 of
// api_key + request_token + api_secret, hex encoded, per the Kite docs.
func (c *Client) ExchangeToken(ctx context.Context, requestToken string) (string, error) {
	sum := sha256.Sum256([]byte(c.cfg.APIKey + requestToken + c.cfg.APISecret))
	form := url.Values{
		"api_key":       {c.cfg.APIKey},
		"request_token": {requestToken},
		"checksum":      {hex.EncodeToString(sum[:])},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/session/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Kite-Version", "3")

	var data struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
	}
	if err := c.do(req, &data); err != nil {
		return "", fmt.Errorf("session exchange: %w", err)
	}
	if data.AccessToken == "" {
		return "", errors.New("session exchange returned no access token")
	}

	// Kite sessions die at 06:00 IST the next morning regardless of
	// when they were created.
	exp := nextSessionExpiry(time.Now())
	if err := c.tokens.Save(ctx, Provider, data.AccessToken, &exp); err != nil {
		return "", fmt.Errorf("persist access token: %w", err)
	}
	c.log.Info("zerodha session established", zap.String("user_id", data.UserID))
	return data.AccessToken, nil
}

// nextSessionExpiry returns the next 06:00 IST after now, in UTC.
func nextSessionExpiry(now time.Time) time.Time {
	ist := now.In(models.IST)
	exp := time.Date(ist.Year(), ist.Month(), ist.Day(), 6, 0, 0, 0, models.IST)
	if !exp.After(ist) {
		exp = exp.AddDate(0, 0, 1)
	}
	return exp.UTC()
}

// Authenticated reports whether a usable session token is stored.
func (c *Client) Authenticated(ctx context.Context) bool {
	_, err := c.tokens.Get(ctx, Provider)
	return err == nil
}

// LTP returns the last traded price for a symbol. Friendly index names
// are mapped to Kite instrument identifiers.
func (c *Client) LTP(ctx context.Context, symbol string) (float64, error) {
	inst := Instrument(symbol)
	req, err := c.authedRequest(ctx, http.MethodGet,
		"/quote/ltp?i="+url.QueryEscape(inst), nil)
	if err != nil {
		return 0, err
	}

	var data map[string]struct {
		LastPrice float64 `json:"last_price"`
	}
	if err := c.do(req, &data); err != nil {
		return 0, fmt.Errorf("ltp %s: %w", inst, err)
	}
	for _, q := range data {
		return q.LastPrice, nil
	}
	return 0, fmt.Errorf("ltp %s: empty response", inst)
}

// Positions returns the account's net positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	req, err := c.authedRequest(ctx, http.MethodGet, "/portfolio/positions", nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		Net []Position `json:"net"`
	}
	if err := c.do(req, &data); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	return data.Net, nil
}

// Margins returns the equity margin summary.
func (c *Client) Margins(ctx context.Context) (Margins, error) {
	req, err := c.authedRequest(ctx, http.MethodGet, "/user/margins", nil)
	if err != nil {
		return Margins{}, err
	}
	var data struct {
		Equity Margins `json:"equity"`
	}
	if err := c.do(req, &data); err != nil {
		return Margins{}, fmt.Errorf("margins: %w", err)
	}
	return data.Equity, nil
}

// PlaceOrder submits a regular order and returns the broker order ID.
// In simulate mode no request is made and a SIM- ID is returned.
func (c *Client) PlaceOrder(ctx context.Context, p OrderParams) (string, error) {
	if c.cfg.Simulate {
		id := fmt.Sprintf("SIM-%d", time.Now().Unix())
		c.log.Info("simulated order",
			zap.String("order_id", id),
			zap.String("tradingsymbol", p.TradingSymbol),
			zap.String("transaction_type", p.TransactionType),
			zap.Int("qty", p.Qty))
		return id, nil
	}

	form := url.Values{
		"exchange":         {p.Exchange},
		"tradingsymbol":    {p.TradingSymbol},
		"transaction_type": {p.TransactionType},
		"quantity":         {strconv.Itoa(p.Qty)},
		"product":          {p.Product},
		"order_type":       {p.OrderType},
	}
	if p.Price > 0 {
		form.Set("price", strconv.FormatFloat(p.Price, 'f', 2, 64))
	}

	req, err := c.authedRequest(ctx, http.MethodPost, "/orders/regular",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var data struct {
		OrderID string `json:"order_id"`
	}
	if err := c.do(req, &data); err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	c.log.Info("order placed",
		zap.String("order_id", data.OrderID),
		zap.String("tradingsymbol", p.TradingSymbol))
	return data.OrderID, nil
}

// Instrument maps friendly symbols to Kite instrument identifiers.
func Instrument(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch s {
	case "NIFTY", "NIFTY50", "NIFTY 50":
		return "NSE:NIFTY 50"
	case "BANKNIFTY", "NIFTY BANK":
		return "NSE:NIFTY BANK"
	}
	if strings.Contains(s, ":") {
		return s
	}
	return "NSE:" + s
}

// authedRequest builds a request with the session headers attached.
func (c *Client) authedRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	tok, err := c.tokens.Get(ctx, Provider)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Kite-Version", "3")
	req.Header.Set("Authorization", "token "+c.cfg.APIKey+":"+tok.AccessToken)
	return req, nil
}

// do executes a request and unmarshals the Kite envelope's data field.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var env struct {
		Status    string          `json:"status"`
		Data      json.RawMessage `json:"data"`
		Message   string          `json:"message"`
		ErrorType string          `json:"error_type"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("kite returned %d: %s", resp.StatusCode, trim(body, 200))
	}
	if resp.StatusCode >= 400 || env.Status == "error" {
		if env.ErrorType == "TokenException" {
			return ErrNotAuthenticated
		}
		return fmt.Errorf("kite %s: %s", env.ErrorType, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode kite data: %w", err)
		}
	}
	return nil
}

func trim(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
