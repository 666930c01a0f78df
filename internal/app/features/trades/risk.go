// internal/app/features/trades/risk.go
package trades

import (
	"fmt"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// verdict is the risk gate's answer for one order request.
type verdict struct {
	OK        bool    `json:"-"`
	Reason    string  `json:"reason,omitempty"`
	WorstLoss float64 `json:"worst_case_loss"`
}

// evaluateRisk is the one gate every order passes, simulated or real.
// It rejects requests with missing fields, then computes the worst-case
// loss |entry - stoploss| * qty * lot_size and rejects anything over
// maxLoss. A request the gate rejects never reaches the broker.
func evaluateRisk(req *models.OrderRequest, maxLoss float64) verdict {
	if missing := missingField(req); missing != "" {
		return verdict{Reason: "missing_" + missing}
	}
	if req.TransactionType != "BUY" && req.TransactionType != "SELL" {
		return verdict{Reason: "invalid_transaction_type"}
	}
	if *req.Qty <= 0 {
		return verdict{Reason: "invalid_qty"}
	}
	if req.LotSize == 0 {
		req.LotSize = 1
	}
	if req.LotSize < 0 {
		return verdict{Reason: "invalid_lot_size"}
	}

	worst := *req.Entry - *req.Stoploss
	if worst < 0 {
		worst = -worst
	}
	worst *= float64(*req.Qty) * float64(req.LotSize)

	if worst > maxLoss {
		return verdict{
			Reason:    fmt.Sprintf("worst_case_loss_exceeds_limit (%.2f > %.2f)", worst, maxLoss),
			WorstLoss: worst,
		}
	}
	return verdict{OK: true, WorstLoss: worst}
}

// missingField names the first absent required field, or returns "".
func missingField(req *models.OrderRequest) string {
	switch {
	case req.Exchange == "":
		return "exchange"
	case req.TradingSymbol == "":
		return "tradingsymbol"
	case req.TransactionType == "":
		return "transaction_type"
	case req.Qty == nil:
		return "qty"
	case req.Entry == nil:
		return "entry"
	case req.Stoploss == nil:
		return "stoploss"
	}
	return ""
}
