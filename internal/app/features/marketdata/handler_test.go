package marketdata_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/broker/groww"
	"github.com/deepak0937/deepak-watchdog/internal/app/features/marketdata"
	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

type fakeSource struct {
	quoteErr   error
	chainErr   error
	emptyChain bool
	symbols    []string
	expiries   []string
	lastQuote  *groww.Quote
}

func (f *fakeSource) Quote(ctx context.Context, symbol string) (*groww.Quote, error) {
	f.symbols = append(f.symbols, symbol)
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	f.lastQuote = &groww.Quote{Symbol: symbol, LTP: 22150.25}
	return f.lastQuote, nil
}

func (f *fakeSource) OptionChain(ctx context.Context, symbol, expiry string) (*models.OptionChain, error) {
	f.symbols = append(f.symbols, symbol)
	f.expiries = append(f.expiries, expiry)
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	if f.emptyChain {
		return &models.OptionChain{Symbol: symbol}, nil
	}
	return &models.OptionChain{
		Symbol:     symbol,
		Underlying: 22150.25,
		CE:         []models.OptionLeg{{Strike: 22200, Type: "CE", OI: 100}},
		PE:         []models.OptionLeg{{Strike: 22100, Type: "PE", OI: 120}},
	}, nil
}

func serve(src *fakeSource, target string) *httptest.ResponseRecorder {
	h := marketdata.NewHandler(src, zap.NewNop())
	rec := httptest.NewRecorder()
	marketdata.Routes(h).ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestServeQuote_UppercasesSymbol(t *testing.T) {
	src := &fakeSource{}
	rec := serve(src, "/quote/nifty")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(src.symbols) != 1 || src.symbols[0] != "NIFTY" {
		t.Errorf("symbols = %v, want [NIFTY]", src.symbols)
	}
	var q groww.Quote
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatal(err)
	}
	if q.LTP != 22150.25 {
		t.Errorf("ltp = %v", q.LTP)
	}
}

func TestServeQuote_UpstreamFailure(t *testing.T) {
	rec := serve(&fakeSource{quoteErr: errors.New("groww 500")}, "/quote/NIFTY")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestServeQuote_NotConfigured(t *testing.T) {
	rec := serve(&fakeSource{quoteErr: groww.ErrNoCredentials}, "/quote/NIFTY")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestServeOptionChain_ForwardsExpiry(t *testing.T) {
	src := &fakeSource{}
	rec := serve(src, "/option-chain/banknifty?expiry=2026-09-25")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(src.expiries) != 1 || src.expiries[0] != "2026-09-25" {
		t.Errorf("expiries = %v", src.expiries)
	}
	if src.symbols[0] != "BANKNIFTY" {
		t.Errorf("symbol = %q", src.symbols[0])
	}
}

func TestServeOptionChain_UpstreamFailure(t *testing.T) {
	rec := serve(&fakeSource{chainErr: errors.New("timeout")}, "/option-chain/NIFTY")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestServeOptionChain_EmptyChainIsBadGateway(t *testing.T) {
	rec := serve(&fakeSource{emptyChain: true}, "/option-chain/NIFTY")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d for a legless chain", rec.Code, http.StatusBadGateway)
	}
}
