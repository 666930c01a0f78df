// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deepak0937/deepak-watchdog/internal/app/launch"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/notify"
)

// envPrefix namespaces every environment override except PORT, which the
// hosting platform sets without a prefix.
const envPrefix = "WATCHDOG_"

// defaults returns the baseline configuration a bare deployment runs
// with: direct mode, local Mongo, NIFTY every five minutes, simulated
// orders, all credentials empty.
func defaults() AppConfig {
	return AppConfig{
		Env:  "dev",
		Mode: string(launch.ModeDirect),
		Host: launch.DefaultHost,

		Workers:           launch.DefaultWorkers,
		RequestTimeout:    launch.DefaultRequestTimeout,
		GraceTimeout:      launch.DefaultGraceTimeout,
		MaxRequests:       launch.DefaultMaxRequests,
		MaxRequestsJitter: launch.DefaultMaxRequestsJitter,

		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "deepak_watchdog",

		Symbols:       []string{"NIFTY"},
		PollInterval:  5 * time.Minute,
		MaxLossRupees: 11000,

		GrowwRefresh:   12 * time.Hour,
		SimulateOrders: true,

		OpenAIDeployment: "gpt-4o-mini",

		PublicRateLimit:  30,
		PublicRateWindow: time.Minute,
	}
}

// LoadConfig builds the AppConfig: defaults, then the YAML file at path
// (when non-empty), then WATCHDOG_* environment variables. The few
// values that also have command-line flags are overridden by the cmd
// layer after this returns, giving flag > env > file > default.
func LoadConfig(path string) (AppConfig, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays WATCHDOG_* variables onto cfg. Unset variables leave
// the existing value alone; malformed ones are startup errors, not
// silent fallbacks.
func applyEnv(cfg *AppConfig) error {
	var err error

	setStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok || err != nil {
			return
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			err = fmt.Errorf("%s%s=%q is not an integer", envPrefix, key, v)
			return
		}
		*dst = n
	}
	setDur := func(key string, dst *time.Duration) {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok || err != nil {
			return
		}
		// Accept both Go durations ("90s", "5m") and bare seconds,
		// which is what the container orchestration historically set.
		if n, convErr := strconv.Atoi(v); convErr == nil {
			*dst = time.Duration(n) * time.Second
			return
		}
		d, convErr := time.ParseDuration(v)
		if convErr != nil {
			err = fmt.Errorf("%s%s=%q is not a duration", envPrefix, key, v)
			return
		}
		*dst = d
	}
	setBool := func(key string, dst *bool) {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok || err != nil {
			return
		}
		b, convErr := strconv.ParseBool(v)
		if convErr != nil {
			err = fmt.Errorf("%s%s=%q is not a boolean", envPrefix, key, v)
			return
		}
		*dst = b
	}
	setFloat := func(key string, dst *float64) {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok || err != nil {
			return
		}
		f, convErr := strconv.ParseFloat(v, 64)
		if convErr != nil {
			err = fmt.Errorf("%s%s=%q is not a number", envPrefix, key, v)
			return
		}
		*dst = f
	}

	setStr("ENV", &cfg.Env)
	setStr("MODE", &cfg.Mode)
	setStr("HOST", &cfg.Host)
	setInt("FALLBACK_PORT", &cfg.FallbackPort)
	setInt("WORKERS", &cfg.Workers)
	setDur("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	setDur("GRACE_TIMEOUT", &cfg.GraceTimeout)
	setInt("MAX_REQUESTS", &cfg.MaxRequests)
	setInt("MAX_REQUESTS_JITTER", &cfg.MaxRequestsJitter)

	setStr("MONGO_URI", &cfg.MongoURI)
	setStr("MONGO_DATABASE", &cfg.MongoDatabase)

	setStr("ADMIN_TOKEN", &cfg.AdminToken)
	setStr("ADMIN_TOKEN_HASH", &cfg.AdminTokenHash)

	if v, ok := os.LookupEnv(envPrefix + "SYMBOLS"); ok {
		cfg.Symbols = splitSymbols(v)
	}
	setDur("POLL_INTERVAL", &cfg.PollInterval)
	setFloat("MAX_LOSS_RUPEES", &cfg.MaxLossRupees)

	setStr("GROWW_BASE_URL", &cfg.GrowwBaseURL)
	setStr("GROWW_TOKEN", &cfg.GrowwToken)
	setStr("GROWW_KEY", &cfg.GrowwKey)
	setStr("GROWW_SECRET", &cfg.GrowwSecret)
	setStr("GROWW_TOKEN_URL", &cfg.GrowwTokenURL)
	setDur("GROWW_REFRESH", &cfg.GrowwRefresh)

	setStr("KITE_API_KEY", &cfg.KiteAPIKey)
	setStr("KITE_API_SECRET", &cfg.KiteAPISecret)
	setStr("KITE_BASE_URL", &cfg.KiteBaseURL)
	setBool("SIMULATE_ORDERS", &cfg.SimulateOrders)

	setStr("OPENAI_ENDPOINT", &cfg.OpenAIEndpoint)
	setStr("OPENAI_KEY", &cfg.OpenAIKey)
	setStr("OPENAI_DEPLOYMENT", &cfg.OpenAIDeployment)
	if _, ok := os.LookupEnv(envPrefix + "OPENAI_TEMPERATURE"); ok {
		var temp float64
		setFloat("OPENAI_TEMPERATURE", &temp)
		if err == nil {
			cfg.OpenAITemperature = float32(temp)
		}
	}

	setStr("TELEGRAM_TOKEN", &cfg.TelegramToken)
	setStr("TELEGRAM_CHAT_ID", &cfg.TelegramChatID)
	setStr("WEBHOOK_URL", &cfg.WebhookURL)

	setStr("STATE_SECRET", &cfg.StateSecret)

	setStr("NSE_BASE_URL", &cfg.NSEBaseURL)
	setInt("PUBLIC_RATE_LIMIT", &cfg.PublicRateLimit)
	setDur("PUBLIC_RATE_WINDOW", &cfg.PublicRateWindow)

	return err
}

// splitSymbols parses a comma-separated symbol list, uppercasing and
// dropping empties.
func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ValidateConfig rejects configurations that could not serve. It runs
// before any connection is attempted so a misconfigured deployment fails
// inside the startup window, not on first use.
func ValidateConfig(cfg AppConfig) error {
	switch cfg.Mode {
	case string(launch.ModeDirect), string(launch.ModeSupervised):
	default:
		return fmt.Errorf("mode %q is not %q or %q", cfg.Mode, launch.ModeDirect, launch.ModeSupervised)
	}
	if cfg.Mode == string(launch.ModeSupervised) && cfg.Workers < 1 {
		return fmt.Errorf("supervised mode needs at least one worker, got %d", cfg.Workers)
	}
	if cfg.MongoURI == "" {
		return fmt.Errorf("mongo_uri must not be empty")
	}
	if !strings.HasPrefix(cfg.MongoURI, "mongodb://") && !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
		return fmt.Errorf("mongo_uri %q does not look like a MongoDB URI", cfg.MongoURI)
	}
	if cfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database must not be empty")
	}
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("symbols must name at least one instrument")
	}
	if cfg.PollInterval < time.Second {
		return fmt.Errorf("poll_interval %s is below one second", cfg.PollInterval)
	}
	if cfg.MaxLossRupees <= 0 {
		return fmt.Errorf("max_loss_rupees must be positive, got %v", cfg.MaxLossRupees)
	}
	if cfg.OpenAITemperature < 0 || cfg.OpenAITemperature > 2 {
		return fmt.Errorf("openai_temperature %v outside [0, 2]", cfg.OpenAITemperature)
	}
	if err := notify.ValidateWebhookURL(cfg.WebhookURL); err != nil {
		return fmt.Errorf("webhook_url: %w", err)
	}
	if cfg.PublicRateLimit < 1 {
		return fmt.Errorf("public_rate_limit must be at least 1, got %d", cfg.PublicRateLimit)
	}
	return nil
}
