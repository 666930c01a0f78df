// internal/app/broker/groww/normalize.go
package groww

import (
	"strconv"
	"strings"
	"time"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// The chain endpoints disagree on field names between generations, so
// normalization reads every known alias and settles on one shape.

// envelopeError returns the API-level error message buried in a 200
// response body, or "" when the payload looks healthy.
func envelopeError(raw map[string]any) string {
	if e := pickString(raw, "error"); e != "" {
		return e
	}
	if s := pickString(raw, "status"); s != "" {
		switch strings.ToLower(s) {
		case "ok", "success":
		default:
			return s
		}
	}
	return ""
}

func normalizeChain(raw map[string]any, symbol string) *models.OptionChain {
	meta := subMap(raw, "meta")
	payload := subMap(raw, "payload")

	sym := pickString(raw, "symbol")
	if sym == "" {
		sym = pickString(meta, "symbol")
	}
	if sym == "" {
		sym = symbol
	}

	ts, ok := parseFlexibleTime(firstPresent(raw, "timestamp", "ts"))
	if !ok {
		ts, ok = parseFlexibleTime(meta["timestamp"])
	}
	if !ok {
		ts = time.Now()
	}

	underlying := pickFloat(raw, "underlying", "underlyingValue", "underlying_value")
	if underlying == 0 {
		underlying = pickFloat(meta, "underlying")
	}

	ce := firstLegList(raw, payload, "ce", "call", "calls")
	pe := firstLegList(raw, payload, "pe", "put", "puts")

	return &models.OptionChain{
		Symbol:     sym,
		Timestamp:  ts.In(models.IST),
		Underlying: underlying,
		CE:         normalizeLegs(ce, "CE"),
		PE:         normalizeLegs(pe, "PE"),
	}
}

func firstLegList(raw, payload map[string]any, keys ...string) []any {
	for _, k := range keys {
		if l, ok := raw[k].([]any); ok && len(l) > 0 {
			return l
		}
	}
	for _, k := range keys {
		if l, ok := payload[k].([]any); ok && len(l) > 0 {
			return l
		}
	}
	return nil
}

func normalizeLegs(items []any, typ string) []models.OptionLeg {
	legs := make([]models.OptionLeg, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		leg := models.OptionLeg{
			Strike:     pickFloat(m, "strike", "strikePrice", "strike_price"),
			Type:       typ,
			OI:         pickInt(m, "openInterest", "open_interest", "oi"),
			ChangeInOI: pickInt(m, "changeInOpenInterest", "change_in_oi", "coi"),
			LTP:        pickFloat(m, "lastTradedPrice", "ltp", "last_price"),
			Volume:     pickInt(m, "volume", "totalTradedVolume"),
		}
		if t := pickString(m, "type", "option_type", "optionType"); t != "" {
			leg.Type = strings.ToUpper(t)
		}
		if exp, ok := parseFlexibleTime(firstPresent(m, "expiry", "expiryDate", "expiry_date")); ok {
			leg.Expiry = exp.In(models.IST)
		}
		legs = append(legs, leg)
	}
	return legs
}

// extractLTP pulls a last-traded price out of whatever quote shape the
// endpoint answered with. Returns 0 when nothing recognizable exists.
func extractLTP(raw map[string]any) float64 {
	keys := []string{"ltp", "lastPrice", "last_price", "lastTradedPrice", "close"}
	if v := pickFloat(raw, keys...); v != 0 {
		return v
	}
	for _, nest := range []string{"payload", "data"} {
		if v := pickFloat(subMap(raw, nest), keys...); v != 0 {
			return v
		}
	}
	return 0
}

// parseFlexibleTime accepts RFC 3339 strings, bare dates, and unix
// second numbers. Naive values are taken as UTC.
func parseFlexibleTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
	case float64:
		return time.Unix(int64(t), 0), true
	case int64:
		return time.Unix(t, 0), true
	}
	return time.Time{}, false
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func subMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	if sub, ok := m[key].(map[string]any); ok {
		return sub
	}
	return nil
}

func pickFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			if v != 0 {
				return v
			}
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil && f != 0 {
				return f
			}
		}
	}
	return 0
}

func pickInt(m map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			if v != 0 {
				return int64(v)
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n != 0 {
				return n
			}
		}
	}
	return 0
}

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
