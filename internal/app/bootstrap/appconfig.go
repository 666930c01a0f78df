// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/deepak0937/deepak-watchdog/internal/app/launch"
)

// AppConfig holds every knob the watchdog reads at startup. Values come
// from an optional YAML config file overridden by WATCHDOG_* environment
// variables (LoadConfig); the hosting platform's PORT variable is read
// separately because that contract belongs to the platform, not to us.
//
// All of it is resolved once, before any connection is opened, and never
// mutated afterwards.
type AppConfig struct {
	// Env selects logger verbosity and cookie hardening: "dev" or "prod".
	Env string `yaml:"env"`

	// Launch: how the HTTP app gets onto the network.
	Mode              string        `yaml:"mode"` // direct | supervised
	Host              string        `yaml:"host"`
	FallbackPort      int           `yaml:"fallback_port"` // used only when PORT is unset
	Workers           int           `yaml:"workers"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	GraceTimeout      time.Duration `yaml:"grace_timeout"`
	MaxRequests       int           `yaml:"max_requests"`
	MaxRequestsJitter int           `yaml:"max_requests_jitter"`

	// MongoDB, the shared state every worker process talks to.
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	// Admin endpoints accept either the plain token or, when set, a
	// bcrypt hash of it. Both empty means the admin surface is disabled.
	AdminToken     string `yaml:"admin_token"`
	AdminTokenHash string `yaml:"admin_token_hash"`

	// Poll pipeline.
	Symbols       []string      `yaml:"symbols"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxLossRupees float64       `yaml:"max_loss_rupees"`

	// Groww market data API.
	GrowwBaseURL  string        `yaml:"groww_base_url"`
	GrowwToken    string        `yaml:"groww_token"` // static token, wins over client credentials
	GrowwKey      string        `yaml:"groww_key"`
	GrowwSecret   string        `yaml:"groww_secret"`
	GrowwTokenURL string        `yaml:"groww_token_url"`
	GrowwRefresh  time.Duration `yaml:"groww_refresh"`

	// Zerodha Kite Connect.
	KiteAPIKey     string `yaml:"kite_api_key"`
	KiteAPISecret  string `yaml:"kite_api_secret"`
	KiteBaseURL    string `yaml:"kite_base_url"`
	SimulateOrders bool   `yaml:"simulate_orders"`

	// Language-model advisor.
	OpenAIEndpoint    string  `yaml:"openai_endpoint"`
	OpenAIKey         string  `yaml:"openai_key"`
	OpenAIDeployment  string  `yaml:"openai_deployment"`
	OpenAITemperature float32 `yaml:"openai_temperature"`

	// Notification channels; empty disables a channel.
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	WebhookURL     string `yaml:"webhook_url"`

	// StateSecret signs the broker-connect state cookie.
	StateSecret string `yaml:"state_secret"`

	// Public OI analytics.
	NSEBaseURL       string        `yaml:"nse_base_url"`
	PublicRateLimit  int           `yaml:"public_rate_limit"`
	PublicRateWindow time.Duration `yaml:"public_rate_window"`
}

// Launch converts the flat config into the launch layer's Config. The
// port is resolved separately (launch.ResolvePort) because it comes from
// the hosting platform at container start, never from this file.
func (c AppConfig) Launch(port int) launch.Config {
	lc := launch.Config{
		Mode:              launch.Mode(c.Mode),
		Host:              c.Host,
		Port:              port,
		Workers:           c.Workers,
		GraceTimeout:      c.GraceTimeout,
		RequestTimeout:    c.RequestTimeout,
		MaxRequests:       c.MaxRequests,
		MaxRequestsJitter: c.MaxRequestsJitter,
	}
	lc.Normalize()
	return lc
}
