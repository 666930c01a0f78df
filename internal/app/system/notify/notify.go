// internal/app/system/notify/notify.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// Per-channel send budgets.
const (
	telegramTimeout = 10 * time.Second
	webhookTimeout  = 8 * time.Second
)

// Config holds the notification targets. Empty fields disable a channel.
type Config struct {
	TelegramToken  string
	TelegramChatID string
	WebhookURL     string
}

// Notifier pushes decision alerts to Telegram and a generic webhook.
// Every send is best effort: a delivery failure is logged, never returned
// to the caller, so a broken channel cannot break the poll cadence.
type Notifier struct {
	cfg         Config
	telegramAPI string
	http        *http.Client
	policy      *bluemonday.Policy
	log         *zap.Logger
}

// New creates a Notifier. Model-generated text is passed through a strict
// sanitizer before it leaves the service.
func New(cfg Config, logger *zap.Logger) *Notifier {
	return &Notifier{
		cfg:         cfg,
		telegramAPI: "https://api.telegram.org",
		http:        &http.Client{},
		policy:      bluemonday.StrictPolicy(),
		log:         logger,
	}
}

// ValidateWebhookURL rejects webhook targets without an http(s) scheme.
// Called at config validation so a bad URL fails startup, not a send.
func ValidateWebhookURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https, got %q", raw)
	}
	return nil
}

// DecisionAlert announces one stored decision on all configured channels.
func (n *Notifier) DecisionAlert(ctx context.Context, d models.Decision) {
	brief := fmt.Sprintf("[deepak-watchdog] %s | %s | decision=%s | qty=%d",
		d.CreatedAt.Format(time.RFC3339), d.Symbol, d.Stance, d.Qty)
	if why := n.cleanText(d.Rationale, 200); why != "" {
		brief += " | " + why
	}

	n.sendTelegram(ctx, brief)
	n.postWebhook(ctx, map[string]any{
		"ts":     d.CreatedAt.Format(time.RFC3339),
		"symbol": d.Symbol,
		"ai":     d.Advice,
	})
}

// ForecastAlert announces an on-demand forecast.
func (n *Notifier) ForecastAlert(ctx context.Context, p models.Prediction) {
	text := fmt.Sprintf("[deepak-watchdog] forecast %s | bias=%s | probability=%d%%",
		p.Date, p.Bias, p.ProbabilityPct)
	if why := n.cleanText(p.Reason, 200); why != "" {
		text += " | " + why
	}
	n.sendTelegram(ctx, text)
}

// cleanText strips markup from model output and truncates it.
func (n *Notifier) cleanText(s string, max int) string {
	s = strings.TrimSpace(n.policy.Sanitize(s))
	if len(s) > max {
		s = s[:max]
	}
	return s
}

func (n *Notifier) sendTelegram(ctx context.Context, text string) {
	if n.cfg.TelegramToken == "" || n.cfg.TelegramChatID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, telegramTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.telegramAPI, n.cfg.TelegramToken)
	body, _ := json.Marshal(map[string]string{
		"chat_id": n.cfg.TelegramChatID,
		"text":    text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		n.log.Error("telegram request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.log.Warn("telegram send failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		n.log.Warn("telegram returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
	}
}

func (n *Notifier) postWebhook(ctx context.Context, payload any) {
	if n.cfg.WebhookURL == "" {
		return
	}
	if err := ValidateWebhookURL(n.cfg.WebhookURL); err != nil {
		n.log.Warn("webhook skipped", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("webhook payload marshal failed", zap.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.log.Error("webhook request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.log.Warn("webhook post failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		n.log.Warn("webhook returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
	}
}
