// internal/domain/models/decision.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stances the model is allowed to return.
const (
	StanceBuy  = "BUY"
	StanceSell = "SELL"
	StanceFlat = "FLAT"
)

// Advice is the strict-JSON verdict the model returns for one symbol.
// The JSON tags match the keys the model is instructed to emit.
type Advice struct {
	Stance        string   `bson:"stance" json:"decision"` // BUY | SELL | FLAT
	Instrument    string   `bson:"instrument" json:"instrument"`
	Qty           int      `bson:"qty" json:"qty"`
	EntryPrice    *float64 `bson:"entry_price,omitempty" json:"entry_price"`
	Stoploss      *float64 `bson:"stoploss,omitempty" json:"stoploss"`
	Rationale     string   `bson:"rationale" json:"rationale"`
	ConfidencePct float64  `bson:"confidence_percent" json:"confidence_percent"`
}

// Decision is one stored watchdog verdict: the market snapshot that was
// fetched, the parsed advice, and the raw model reply (truncated).
type Decision struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Symbol    string             `bson:"symbol" json:"symbol"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	Snapshot  bson.M             `bson:"snapshot" json:"snapshot"`
	Advice    `bson:",inline"`
	Raw       string `bson:"raw,omitempty" json:"raw,omitempty"`
}
