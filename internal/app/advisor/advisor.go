// internal/app/advisor/advisor.go
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// ErrNotConfigured is returned by Forecast when no API key is set.
var ErrNotConfigured = errors.New("advisor not configured")

// Config holds the model settings. Endpoint accepts both OpenAI-style
// and Azure OpenAI endpoints.
type Config struct {
	Endpoint    string  // default https://api.openai.com/v1
	APIKey      string  // empty disables the advisor
	Deployment  string  // model or deployment name, default gpt-4o-mini
	Temperature float32 // default 0
}

// Advisor asks a chat model for trade decisions and forecasts. It is
// built to degrade, not fail: a missing key or a flaky model yields a
// FLAT decision so the poll cadence never breaks.
type Advisor struct {
	cfg    Config
	client *azopenai.Client // nil when no key is configured
	log    *zap.Logger
}

// New creates an Advisor. With no API key it still works, answering
// every Decide with a deterministic FLAT.
func New(cfg Config, logger *zap.Logger) (*Advisor, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1"
	}
	if cfg.Deployment == "" {
		cfg.Deployment = "gpt-4o-mini"
	}

	a := &Advisor{cfg: cfg, log: logger}
	if cfg.APIKey == "" {
		logger.Warn("advisor API key not set, every decision will be FLAT")
		return a, nil
	}

	cred := azcore.NewKeyCredential(cfg.APIKey)
	var (
		client *azopenai.Client
		err    error
	)
	if strings.Contains(cfg.Endpoint, "openai.azure.com") {
		client, err = azopenai.NewClientWithKeyCredential(cfg.Endpoint, cred, nil)
	} else {
		client, err = azopenai.NewClientForOpenAI(cfg.Endpoint, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	a.client = client
	return a, nil
}

// Configured reports whether a real model backs this advisor.
func (a *Advisor) Configured() bool { return a.client != nil }

const decisionSystemPrompt = `You are Deepak Lab assistant. Output STRICT JSON only with keys: ` +
	`{"decision","instrument","qty","entry_price","stoploss","rationale","confidence_percent"}. ` +
	`Decision must be exactly one of: BUY, SELL, FLAT. Observe max loss limit and single-active-trade preference. ` +
	`Trading is manual, do NOT place orders. If unsure, return FLAT.`

// Decide asks the model what to do about symbol given the market
// snapshot. It never returns an error: whatever goes wrong collapses to
// a FLAT advice whose rationale says why, plus the raw model text for
// the audit trail.
func (a *Advisor) Decide(ctx context.Context, symbol string, snapshot any) (models.Advice, string) {
	if a.client == nil {
		return models.Advice{
			Stance:     models.StanceFlat,
			Instrument: symbol,
			Rationale:  "OpenAI key missing. Defaulting to FLAT.",
		}, "OpenAI key missing"
	}

	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		snapJSON = []byte(fmt.Sprintf("%v", snapshot))
	}
	user := fmt.Sprintf("Market snapshot for %s at %s:\n%s\nReturn STRICT JSON.",
		symbol, time.Now().Format(time.RFC3339), snapJSON)

	raw, err := a.chat(ctx, decisionSystemPrompt, user, 500)
	if err != nil {
		a.log.Warn("advisor call failed", zap.String("symbol", symbol), zap.Error(err))
		return models.Advice{
			Stance:     models.StanceFlat,
			Instrument: symbol,
			Rationale:  "OpenAI error: " + err.Error(),
		}, err.Error()
	}
	return ParseAdvice(raw, symbol), raw
}

const forecastPrompt = `You are 'Deepak Trend Assistant'. Given the DATA below, return strict JSON ONLY.

DATA:
%s

REQUIREMENTS:
Return JSON with keys:
- date (YYYY-MM-DD)
- bias: "BULLISH"|"BEARISH"|"NEUTRAL"
- probability_pct: integer 0-100
- pivot: float
- support: [float, float]
- resistance: [float, float]
- reason: short string (1-2 lines)
- trade_suggestion: either null or an object with keys:
    { "type": "BUY"/"SELL", "entry":float, "qty":int, "stoploss":float, "target":float, "lot_size":int }
Return ONLY valid JSON.`

// Forecast asks the model for a next-day outlook built from the given
// data blob. Unlike Decide this is an on-demand operation, so failures
// are reported to the caller instead of being absorbed.
func (a *Advisor) Forecast(ctx context.Context, blob any) (models.Forecast, string, error) {
	if a.client == nil {
		return models.Forecast{}, "", ErrNotConfigured
	}

	blobJSON, err := json.Marshal(blob)
	if err != nil {
		return models.Forecast{}, "", fmt.Errorf("encode data blob: %w", err)
	}

	raw, err := a.chat(ctx, "", fmt.Sprintf(forecastPrompt, blobJSON), 400)
	if err != nil {
		return models.Forecast{}, "", fmt.Errorf("forecast call: %w", err)
	}

	fc, err := ParseForecast(raw)
	if err != nil {
		return models.Forecast{}, raw, fmt.Errorf("forecast response: %w", err)
	}
	return fc, raw, nil
}

// chat performs one completion round trip. An empty system prompt sends
// a single user message.
func (a *Advisor) chat(ctx context.Context, system, user string, maxTokens int32) (string, error) {
	msgs := []azopenai.ChatRequestMessageClassification{}
	if system != "" {
		msgs = append(msgs, &azopenai.ChatRequestSystemMessage{
			Content: azopenai.NewChatRequestSystemMessageContent(system),
		})
	}
	msgs = append(msgs, &azopenai.ChatRequestUserMessage{
		Content: azopenai.NewChatRequestUserMessageContent(user),
	})

	resp, err := a.client.GetChatCompletions(ctx, azopenai.ChatCompletionsOptions{
		DeploymentName: to.Ptr(a.cfg.Deployment),
		Messages:       msgs,
		Temperature:    to.Ptr(a.cfg.Temperature),
		MaxTokens:      to.Ptr(maxTokens),
	}, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", errors.New("no completion received")
	}
	return strings.TrimSpace(*resp.Choices[0].Message.Content), nil
}
