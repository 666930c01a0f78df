package launch

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestServeListener_ServesThenDrains(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cfg := Config{Mode: ModeDirect, GraceTimeout: 2 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveListener(ctx, cfg, ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), zap.NewNop())
	}()

	url := "http://" + ln.Addr().String() + "/"
	var resp *http.Response
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err = http.Get(url)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("liveness request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveListener returned %v after cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestDirect_BindFailureIsImmediate(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := Config{
		Mode:         ModeDirect,
		Host:         "127.0.0.1",
		Port:         ln.Addr().(*net.TCPAddr).Port,
		GraceTimeout: time.Second,
	}
	start := time.Now()
	err = Direct(context.Background(), cfg, http.NotFoundHandler(), zap.NewNop())
	if err == nil {
		t.Fatal("expected a bind error on an occupied port")
	}
	if !strings.Contains(err.Error(), "bind") {
		t.Errorf("error = %q, want a bind failure", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("bind failure took %v, must not hang", time.Since(start))
	}
}
