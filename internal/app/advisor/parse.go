// internal/app/advisor/parse.go
package advisor

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// ExtractJSON digs a JSON object out of model output. Models wrap
// answers in code fences or chatty prefixes no matter how firmly the
// prompt says not to. Returns the input unchanged when no object is
// found.
func ExtractJSON(s string) string {
	s = stripCodeFences(strings.TrimSpace(s))

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// stripCodeFences removes a leading ``` fence (with optional language
// tag) and its closing fence.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]
	// Drop the language tag up to the first newline.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if first == "" || isLangTag(first) {
			s = s[i+1:]
		}
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func isLangTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// ParseAdvice turns raw model output into an Advice. Anything that does
// not parse becomes a FLAT advice carrying the raw text as rationale,
// so a confused model can never produce a tradeable instruction.
func ParseAdvice(raw, symbol string) models.Advice {
	var adv models.Advice
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &adv); err != nil {
		return models.Advice{
			Stance:     models.StanceFlat,
			Instrument: symbol,
			Rationale:  raw,
		}
	}

	adv.Stance = strings.ToUpper(strings.TrimSpace(adv.Stance))
	switch adv.Stance {
	case models.StanceBuy, models.StanceSell, models.StanceFlat:
	default:
		adv.Stance = models.StanceFlat
	}
	if adv.Instrument == "" {
		adv.Instrument = symbol
	}
	if adv.Qty < 0 {
		adv.Qty = 0
	}
	return adv
}

// ParseForecast parses model output into a Forecast.
func ParseForecast(raw string) (models.Forecast, error) {
	var fc models.Forecast
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &fc); err != nil {
		return models.Forecast{}, errors.New("invalid_json")
	}
	fc.Bias = strings.ToUpper(strings.TrimSpace(fc.Bias))
	if fc.ProbabilityPct < 0 {
		fc.ProbabilityPct = 0
	}
	if fc.ProbabilityPct > 100 {
		fc.ProbabilityPct = 100
	}
	return fc, nil
}
