// internal/app/nse/nse.go
package nse

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// ErrHoliday is returned when the archive has no bhavcopy for a date,
// which on NSE means a weekend or trading holiday.
var ErrHoliday = errors.New("no bhavcopy for date (holiday?)")

// userAgent mimics a desktop browser; the archive host rejects default
// Go client strings.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36"

// Config holds archive fetch settings. Defaults match the public NSE
// archive; tests point BaseURL at a local server.
type Config struct {
	BaseURL      string
	MaxRetries   int           // default 4
	RetryBackoff time.Duration // default 600ms, doubled per retry
}

// Client downloads and parses NSE F&O bhavcopy archives.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// Row is one derivatives record from a bhavcopy CSV.
type Row struct {
	Instrument string
	Symbol     string
	ExpiryDate string // as printed, e.g. "26-Jun-2025"
	Strike     float64
	OptionType string // CE | PE
	OpenInt    float64
	ChgInOI    float64
	Contracts  float64
	Timestamp  string
}

// New creates an archive client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://archives.nseindia.com"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 600 * time.Millisecond
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  logger,
	}
}

// BhavURL builds the archive URL for a trading date, e.g.
// /content/historical/DERIVATIVES/2025/SEP/fo28SEP2025bhav.csv.zip.
func (c *Client) BhavURL(date time.Time) string {
	mon := strings.ToUpper(date.Format("Jan"))
	return fmt.Sprintf("%s/content/historical/DERIVATIVES/%s/%s/fo%s%s%sbhav.csv.zip",
		c.cfg.BaseURL, date.Format("2006"), mon, date.Format("02"), mon, date.Format("2006"))
}

// FetchBhavcopy downloads and parses the F&O bhavcopy for a date.
// Returns ErrHoliday when the archive has nothing for that day.
func (c *Client) FetchBhavcopy(ctx context.Context, date time.Time) ([]Row, error) {
	body, err := c.get(ctx, c.BhavURL(date))
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("bhavcopy zip: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, errors.New("empty bhavcopy zip")
	}

	f, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("bhavcopy zip entry: %w", err)
	}
	defer f.Close()

	return parseCSV(f)
}

// get fetches a URL with browser headers, retrying rate limits, server
// errors, and transport failures with growing backoff.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	backoff := c.cfg.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Referer", "https://www.nseindia.com/")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrHoliday
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("archive returned %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("archive returned %d for %s", resp.StatusCode, u)
		}
		return body, nil
	}
	return nil, lastErr
}

// parseCSV reads bhavcopy rows by header name, so column reordering in
// the archive format does not break parsing.
func parseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // NSE files carry a trailing empty column

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("bhavcopy header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(strings.ToUpper(h))] = i
	}
	for _, required := range []string{"INSTRUMENT", "SYMBOL", "EXPIRY_DT", "STRIKE_PR", "OPTION_TYP"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("bhavcopy missing column %s", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bhavcopy row: %w", err)
		}
		rows = append(rows, Row{
			Instrument: field(rec, "INSTRUMENT"),
			Symbol:     field(rec, "SYMBOL"),
			ExpiryDate: field(rec, "EXPIRY_DT"),
			Strike:     parseFloat(field(rec, "STRIKE_PR")),
			OptionType: field(rec, "OPTION_TYP"),
			OpenInt:    parseFloat(field(rec, "OPEN_INT")),
			ChgInOI:    parseFloat(field(rec, "CHG_IN_OI")),
			Contracts:  parseFloat(field(rec, "CONTRACTS")),
			Timestamp:  field(rec, "TIMESTAMP"),
		})
	}
	return rows, nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ISTToday returns the current date in exchange time. Date selection
// must follow IST regardless of the host timezone.
func ISTToday() time.Time {
	now := time.Now().In(models.IST)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, models.IST)
}
