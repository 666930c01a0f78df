// internal/app/nse/chain.go
package nse

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoOptionData is returned when the bhavcopy carries no option rows
// for the requested symbol.
var ErrNoOptionData = errors.New("no option data for symbol")

// expiryLayout matches EXPIRY_DT as printed in bhavcopy files.
const expiryLayout = "02-Jan-2006"

// SideOI aggregates one side (CE or PE) of a strike.
type SideOI struct {
	OI  float64 `json:"oi"`
	COI float64 `json:"coi"`
	Vol float64 `json:"vol"`
}

// StrikeOI is the per-strike call/put aggregate.
type StrikeOI struct {
	Strike float64 `json:"strike"`
	CE     SideOI  `json:"CE"`
	PE     SideOI  `json:"PE"`
}

// DailyOI is the full chain for one symbol on one trade date.
type DailyOI struct {
	Symbol         string     `json:"symbol"`
	TradeDate      string     `json:"trade_date"` // as printed, e.g. "28-Sep-2025"
	Expiry         string     `json:"expiry"`     // e.g. "02-Oct-2025"
	TopCallStrikes []float64  `json:"top_call_strikes"`
	TopPutStrikes  []float64  `json:"top_put_strikes"`
	Strikes        []StrikeOI `json:"strikes"`
}

// HistoryDay is the compact per-day summary used for scans.
type HistoryDay struct {
	Date           string    `json:"date"` // YYYY-MM-DD
	Expiry         string    `json:"expiry"`
	TopCallStrikes []float64 `json:"top_call_strikes"`
	TopPutStrikes  []float64 `json:"top_put_strikes"`
}

// History is a day-wise top-OI series over a date range.
type History struct {
	Symbol string       `json:"symbol"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	Days   []HistoryDay `json:"days"`
}

// DailyOI fetches the bhavcopy for date and aggregates the option chain
// for symbol. expiryISO ("2006-01-02") selects a contract; empty picks
// the nearest expiry present in the file.
func (c *Client) DailyOI(ctx context.Context, symbol string, date time.Time, expiryISO string) (*DailyOI, error) {
	rows, err := c.FetchBhavcopy(ctx, date)
	if err != nil {
		return nil, err
	}
	return BuildChain(rows, strings.ToUpper(symbol), expiryISO)
}

// BuildChain aggregates bhavcopy rows into the per-strike OI book.
func BuildChain(rows []Row, symbol, expiryISO string) (*DailyOI, error) {
	var opt []Row
	for _, r := range rows {
		if r.Symbol == symbol && (r.Instrument == "OPTIDX" || r.Instrument == "OPTSTK") {
			opt = append(opt, r)
		}
	}
	if len(opt) == 0 {
		return nil, ErrNoOptionData
	}

	expiry, err := nearestOrSpecificExpiry(opt, expiryISO)
	if err != nil {
		return nil, err
	}

	type sides struct{ ce, pe SideOI }
	book := map[float64]*sides{}
	tradeDate := ""
	for _, r := range opt {
		if r.ExpiryDate != expiry {
			continue
		}
		if tradeDate == "" {
			tradeDate = r.Timestamp
		}
		s := book[r.Strike]
		if s == nil {
			s = &sides{}
			book[r.Strike] = s
		}
		switch r.OptionType {
		case "CE":
			s.ce.OI += r.OpenInt
			s.ce.COI += r.ChgInOI
			s.ce.Vol += r.Contracts
		case "PE":
			s.pe.OI += r.OpenInt
			s.pe.COI += r.ChgInOI
			s.pe.Vol += r.Contracts
		}
	}

	strikes := make([]float64, 0, len(book))
	for k := range book {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)

	out := make([]StrikeOI, 0, len(strikes))
	for _, k := range strikes {
		s := book[k]
		out = append(out, StrikeOI{
			Strike: k,
			CE:     SideOI{OI: round2(s.ce.OI), COI: round2(s.ce.COI), Vol: round2(s.ce.Vol)},
			PE:     SideOI{OI: round2(s.pe.OI), COI: round2(s.pe.COI), Vol: round2(s.pe.Vol)},
		})
	}

	return &DailyOI{
		Symbol:         symbol,
		TradeDate:      tradeDate,
		Expiry:         expiry,
		TopCallStrikes: topStrikes(strikes, func(k float64) float64 { return book[k].ce.OI }),
		TopPutStrikes:  topStrikes(strikes, func(k float64) float64 { return book[k].pe.OI }),
		Strikes:        out,
	}, nil
}

// nearestOrSpecificExpiry picks the wanted expiry when the file has it,
// otherwise the soonest one present.
func nearestOrSpecificExpiry(opt []Row, wantedISO string) (string, error) {
	seen := map[string]bool{}
	var expiries []string
	for _, r := range opt {
		if !seen[r.ExpiryDate] {
			seen[r.ExpiryDate] = true
			expiries = append(expiries, r.ExpiryDate)
		}
	}
	if len(expiries) == 0 {
		return "", ErrNoOptionData
	}
	sort.Slice(expiries, func(i, j int) bool {
		return parseExpiry(expiries[i]).Before(parseExpiry(expiries[j]))
	})

	if wantedISO != "" {
		if want, err := time.Parse("2006-01-02", wantedISO); err == nil {
			printed := want.Format(expiryLayout)
			if seen[printed] {
				return printed, nil
			}
		}
	}
	return expiries[0], nil
}

// parseExpiry tolerates the archive's varying month-name casing.
// Unparseable dates sort to the far future so they are never chosen as
// the nearest expiry.
func parseExpiry(s string) time.Time {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) == 3 && len(parts[1]) == 3 {
		mon := strings.ToUpper(parts[1][:1]) + strings.ToLower(parts[1][1:])
		s = parts[0] + "-" + mon + "-" + parts[2]
	}
	t, err := time.Parse(expiryLayout, s)
	if err != nil {
		return time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// topStrikes returns up to ten strikes ranked by the given OI metric.
// Ties keep ascending strike order.
func topStrikes(strikes []float64, oi func(float64) float64) []float64 {
	ranked := append([]float64(nil), strikes...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return oi(ranked[i]) > oi(ranked[j])
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	return ranked
}

// HistoryOI walks the date range day by day, fetching archives with
// bounded concurrency. Holidays and broken days are skipped; the
// surviving days come back in calendar order.
func (c *Client) HistoryOI(ctx context.Context, symbol string, start, end time.Time, expiryISO string) (*History, error) {
	if end.Before(start) {
		return nil, errors.New("end must be >= start")
	}
	symbol = strings.ToUpper(symbol)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}

	results := make([]*HistoryDay, len(dates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, d := range dates {
		i, d := i, d
		g.Go(func() error {
			rows, err := c.FetchBhavcopy(gctx, d)
			if err != nil {
				if !errors.Is(err, ErrHoliday) {
					c.log.Debug("bhavcopy fetch skipped",
						zap.String("date", d.Format("2006-01-02")), zap.Error(err))
				}
				return nil
			}
			chain, err := BuildChain(rows, symbol, expiryISO)
			if err != nil {
				return nil
			}
			results[i] = &HistoryDay{
				Date:           d.Format("2006-01-02"),
				Expiry:         chain.Expiry,
				TopCallStrikes: chain.TopCallStrikes,
				TopPutStrikes:  chain.TopPutStrikes,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	days := []HistoryDay{}
	for _, r := range results {
		if r != nil {
			days = append(days, *r)
		}
	}
	return &History{
		Symbol: symbol,
		From:   start.Format("2006-01-02"),
		To:     end.Format("2006-01-02"),
		Days:   days,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
