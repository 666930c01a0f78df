// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	brokerauthfeature "github.com/deepak0937/deepak-watchdog/internal/app/features/brokerauth"
	decisionsfeature "github.com/deepak0937/deepak-watchdog/internal/app/features/decisions"
	healthfeature "github.com/deepak0937/deepak-watchdog/internal/app/features/health"
	marketdatafeature "github.com/deepak0937/deepak-watchdog/internal/app/features/marketdata"
	oifeature "github.com/deepak0937/deepak-watchdog/internal/app/features/oi"
	predictfeature "github.com/deepak0937/deepak-watchdog/internal/app/features/predict"
	schedctlfeature "github.com/deepak0937/deepak-watchdog/internal/app/features/schedctl"
	summaryfeature "github.com/deepak0937/deepak-watchdog/internal/app/features/summary"
	tradesfeature "github.com/deepak0937/deepak-watchdog/internal/app/features/trades"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/ratelimit"
)

// BuildHandler constructs the root HTTP handler. Everything a handler
// needs comes from the App composition root; serving the wrong app
// object is a compile error here, not a runtime import failure.
//
// Route map:
//
//	GET  /health                      liveness + Mongo ping
//	GET  /decisions, /decisions/latest
//	POST /predict                     (admin) on-demand trend forecast
//	POST /trades, /trades/simulate    (admin) risk-gated orders
//	GET/DELETE /admin/trades/active   (admin)
//	GET  /scheduler                   status
//	POST /scheduler/{pause,resume,run-now}  (admin)
//	GET  /connect/zerodha{,/callback} broker login flow
//	GET  /market/quote/{symbol}, /market/option-chain/{symbol}
//	GET  /public/oi/{daily,history}   rate limited
//	GET  /public/summary
func BuildHandler(a *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	healthHandler := healthfeature.NewHandler(a.DB.MongoClient, a.Log)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	decisionsHandler := decisionsfeature.NewHandler(a.Decisions, a.Log)
	r.Mount("/decisions", decisionsfeature.Routes(decisionsHandler))

	predictHandler := predictfeature.NewHandler(a.Advisor, a.Ticks, a.Decisions, a.Predictions, a.Notifier, a.Log)
	r.Mount("/predict", predictfeature.Routes(predictHandler, a.Guard))

	tradesHandler := tradesfeature.NewHandler(a.Trades, a.Zerodha, a.Cfg.MaxLossRupees, a.Log)
	r.Mount("/trades", tradesfeature.Routes(tradesHandler, a.Guard))
	r.Mount("/admin/trades", tradesfeature.AdminRoutes(tradesHandler, a.Guard))

	schedHandler := schedctlfeature.NewHandler(a.Sched, a.Watchdog, a.Cfg.PollInterval, a.Log)
	r.Mount("/scheduler", schedctlfeature.Routes(schedHandler, a.Guard))

	connectHandler := brokerauthfeature.NewHandler(a.Zerodha, a.LoginStates, a.Cookies, a.Cfg.Env == "prod", a.Log)
	r.Mount("/connect", brokerauthfeature.Routes(connectHandler))

	marketHandler := marketdatafeature.NewHandler(a.Groww, a.Log)
	r.Mount("/market", marketdatafeature.Routes(marketHandler))

	// The OI endpoints hit the NSE archive on behalf of anonymous
	// callers, so they carry their own per-IP limiter.
	publicLimiter := ratelimit.New(a.Cfg.PublicRateLimit, a.Cfg.PublicRateWindow)
	oiHandler := oifeature.NewHandler(a.NSE, a.Log)
	r.Mount("/public/oi", oifeature.Routes(oiHandler, publicLimiter))

	summaryHandler := summaryfeature.NewHandler(a.Zerodha, a.Decisions, a.Log)
	r.Mount("/public/summary", summaryfeature.Routes(summaryHandler))

	return r
}
