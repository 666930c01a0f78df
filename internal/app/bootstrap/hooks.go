// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/advisor"
	"github.com/deepak0937/deepak-watchdog/internal/app/broker/groww"
	"github.com/deepak0937/deepak-watchdog/internal/app/broker/zerodha"
	"github.com/deepak0937/deepak-watchdog/internal/app/nse"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/decisions"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/loginstate"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/predictions"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/schedstate"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/ticks"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/tokens"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/trades"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/adminauth"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/notify"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/tasks"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/timeouts"
	"github.com/deepak0937/deepak-watchdog/internal/app/watchdog"
)

// App is the composition root: every store, client, and background
// runner, constructed exactly once per process and injected explicitly
// into handlers. There are no module-level singletons holding the app
// object; if it is not reachable from here, it does not exist.
type App struct {
	Cfg AppConfig
	Log *zap.Logger
	DB  DBDeps

	Decisions   *decisions.Store
	Tokens      *tokens.Store
	Trades      *trades.Store
	Predictions *predictions.Store
	Ticks       *ticks.Store
	Sched       *schedstate.Store
	LoginStates *loginstate.Store

	Groww    *groww.Client
	Zerodha  *zerodha.Client
	Advisor  *advisor.Advisor
	NSE      *nse.Client
	Notifier *notify.Notifier

	Watchdog *watchdog.Watchdog
	Guard    *adminauth.Guard
	Cookies  *securecookie.SecureCookie

	runner *tasks.Runner
}

// Build runs the startup sequence in its fixed order: validate config,
// connect the database, ensure schema, construct clients and the poll
// pipeline. Any error is fatal to the caller; there is nothing to retry
// at this layer.
func Build(ctx context.Context, cfg AppConfig, logger *zap.Logger) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	timeouts.ConfigureFromEnv()

	deps, err := ConnectDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, deps, logger); err != nil {
		_ = deps.MongoClient.Disconnect(context.Background())
		return nil, err
	}

	a := &App{
		Cfg: cfg,
		Log: logger,
		DB:  deps,

		Decisions:   decisions.New(deps.MongoDatabase),
		Tokens:      tokens.New(deps.MongoDatabase),
		Trades:      trades.New(deps.MongoDatabase),
		Predictions: predictions.New(deps.MongoDatabase),
		Ticks:       ticks.New(deps.MongoDatabase),
		Sched:       schedstate.New(deps.MongoDatabase),
		LoginStates: loginstate.New(deps.MongoDatabase),
	}

	a.Groww = groww.New(groww.Config{
		BaseURL:      cfg.GrowwBaseURL,
		APIToken:     cfg.GrowwToken,
		ClientID:     cfg.GrowwKey,
		ClientSecret: cfg.GrowwSecret,
		TokenURL:     cfg.GrowwTokenURL,
	}, a.Tokens, logger)

	a.Zerodha = zerodha.New(zerodha.Config{
		APIKey:    cfg.KiteAPIKey,
		APISecret: cfg.KiteAPISecret,
		Simulate:  cfg.SimulateOrders,
		BaseURL:   cfg.KiteBaseURL,
	}, a.Tokens, logger)

	a.Advisor, err = advisor.New(advisor.Config{
		Endpoint:    cfg.OpenAIEndpoint,
		APIKey:      cfg.OpenAIKey,
		Deployment:  cfg.OpenAIDeployment,
		Temperature: cfg.OpenAITemperature,
	}, logger)
	if err != nil {
		_ = deps.MongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("advisor: %w", err)
	}

	a.NSE = nse.New(nse.Config{BaseURL: cfg.NSEBaseURL}, logger)
	a.Notifier = notify.New(notify.Config{
		TelegramToken:  cfg.TelegramToken,
		TelegramChatID: cfg.TelegramChatID,
		WebhookURL:     cfg.WebhookURL,
	}, logger)

	a.Watchdog = watchdog.New(watchdog.Config{
		Quotes:    a.Groww,
		Advisor:   a.Advisor,
		Decisions: a.Decisions,
		Ticks:     a.Ticks,
		Sched:     a.Sched,
		Notifier:  a.Notifier,
		Symbols:   cfg.Symbols,
	}, logger)

	a.Guard = adminauth.New(cfg.AdminToken, cfg.AdminTokenHash, logger)
	if !a.Guard.Configured() {
		logger.Warn("no admin token configured, admin endpoints will refuse every request")
	}
	a.Cookies = newStateCodec(cfg.StateSecret)

	return a, nil
}

// newStateCodec builds the signer for the broker-connect state cookie.
// With no configured secret a per-process random key is used: state
// cookies then survive only as long as the process, which is fine for
// a flow that completes in one browser round trip.
func newStateCodec(secret string) *securecookie.SecureCookie {
	key := []byte(secret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	sc := securecookie.New(key, nil)
	sc.MaxAge(600)
	return sc
}

// leaseHolder identifies this process in the poll leader lease.
func leaseHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
