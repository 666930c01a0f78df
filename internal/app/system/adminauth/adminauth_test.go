package adminauth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deepak0937/deepak-watchdog/internal/app/system/adminauth"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func protected(g *adminauth.Guard) http.Handler {
	return g.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
}

func TestRequire_NoTokenConfigured(t *testing.T) {
	g := adminauth.New("", "", zap.NewNop())

	req := httptest.NewRequest("POST", "/scheduler/pause", nil)
	req.Header.Set("X-Admin-Token", "anything")
	rec := httptest.NewRecorder()

	protected(g).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestRequire_WrongToken(t *testing.T) {
	g := adminauth.New("secret", "", zap.NewNop())

	req := httptest.NewRequest("POST", "/predict", nil)
	req.Header.Set("X-Admin-Token", "nope")
	rec := httptest.NewRecorder()

	protected(g).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRequire_MissingToken(t *testing.T) {
	g := adminauth.New("secret", "", zap.NewNop())

	req := httptest.NewRequest("POST", "/predict", nil)
	rec := httptest.NewRecorder()

	protected(g).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRequire_HeaderToken(t *testing.T) {
	g := adminauth.New("secret", "", zap.NewNop())

	req := httptest.NewRequest("POST", "/predict", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec := httptest.NewRecorder()

	protected(g).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestRequire_QueryParamFallback(t *testing.T) {
	g := adminauth.New("secret", "", zap.NewNop())

	req := httptest.NewRequest("POST", "/scheduler/run-now?token=secret", nil)
	rec := httptest.NewRecorder()

	protected(g).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestRequire_BcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	g := adminauth.New("", string(hash), zap.NewNop())

	req := httptest.NewRequest("POST", "/predict", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec := httptest.NewRecorder()

	protected(g).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	req = httptest.NewRequest("POST", "/predict", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	rec = httptest.NewRecorder()

	protected(g).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}
