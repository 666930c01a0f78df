// internal/app/features/brokerauth/handler.go
package brokerauth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/broker/zerodha"
	statestore "github.com/deepak0937/deepak-watchdog/internal/app/store/loginstate"
	"github.com/deepak0937/deepak-watchdog/internal/app/system/timeouts"
)

// stateCookie carries the signed login-state nonce across the broker
// redirect. Kite's callback does not echo a state parameter, so the
// cookie is the only way to tie the callback to the login we started.
const stateCookie = "watchdog_connect_state"

// stateTTL bounds how long a started login stays redeemable.
const stateTTL = 10 * time.Minute

// Broker is the session-establishing slice of the Kite client.
type Broker interface {
	LoginURL() string
	ExchangeToken(ctx context.Context, requestToken string) (string, error)
}

// Handler serves the broker connect flow: mint a one-time state, send
// the human to the broker's login page, then redeem the request token
// the broker hands back.
type Handler struct {
	Broker  Broker
	States  *statestore.Store
	Cookies *securecookie.SecureCookie
	Secure  bool
	Log     *zap.Logger
}

// NewHandler creates a broker auth handler. secure hardens the state
// cookie for TLS-terminated production.
func NewHandler(broker Broker, states *statestore.Store, cookies *securecookie.SecureCookie, secure bool, logger *zap.Logger) *Handler {
	return &Handler{Broker: broker, States: states, Cookies: cookies, Secure: secure, Log: logger}
}

// ServeConnect handles GET /connect/zerodha: mint and persist a state
// nonce, set its signed cookie, and redirect to the Kite login page.
func (h *Handler) ServeConnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	state := uuid.NewString()
	if err := h.States.Save(ctx, state, zerodha.Provider, time.Now().UTC().Add(stateTTL)); err != nil {
		h.Log.Error("login state save failed", zap.Error(err))
		h.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	encoded, err := h.Cookies.Encode(stateCookie, state)
	if err != nil {
		h.Log.Error("state cookie encode failed", zap.Error(err))
		h.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    encoded,
		Path:     "/connect",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.Broker.LoginURL(), http.StatusFound)
}

// ServeCallback handles GET /connect/zerodha/callback. The broker
// redirects here with request_token; the signed cookie must decode to a
// state that is still stored and unconsumed, then the token exchange
// persists the day's access token for every worker process to use.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	if status := r.URL.Query().Get("status"); status != "" && status != "success" {
		h.jsonError(w, http.StatusBadRequest, "broker login failed: "+status)
		return
	}
	requestToken := r.URL.Query().Get("request_token")
	if requestToken == "" {
		h.jsonError(w, http.StatusBadRequest, "request_token missing")
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		h.jsonError(w, http.StatusForbidden, "login state cookie missing")
		return
	}
	var state string
	if err := h.Cookies.Decode(stateCookie, cookie.Value, &state); err != nil {
		h.Log.Warn("state cookie rejected", zap.Error(err))
		h.jsonError(w, http.StatusForbidden, "login state invalid")
		return
	}

	provider, valid, err := h.States.Consume(ctx, state)
	if err != nil {
		h.Log.Error("login state consume failed", zap.Error(err))
		h.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !valid || provider != zerodha.Provider {
		h.jsonError(w, http.StatusForbidden, "login state expired or already used")
		return
	}

	if _, err := h.Broker.ExchangeToken(ctx, requestToken); err != nil {
		h.Log.Error("token exchange failed", zap.Error(err))
		h.jsonError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	// The state is burned; drop its cookie too.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/connect",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	h.Log.Info("broker connected", zap.String("provider", zerodha.Provider))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":   "connected",
		"provider": zerodha.Provider,
	})
}

func (h *Handler) jsonError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
