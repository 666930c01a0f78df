package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
)

// NewAdminRequest builds a request that carries the admin token header.
// Use it in tests for handlers mounted behind the admin guard.
func NewAdminRequest(method, target, token string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Admin-Token", token)
	return req
}
