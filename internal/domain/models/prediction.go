// internal/domain/models/prediction.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TradeSuggestion is the optional trade idea attached to a forecast.
type TradeSuggestion struct {
	Type     string  `bson:"type" json:"type"` // BUY | SELL
	Entry    float64 `bson:"entry" json:"entry"`
	Qty      int     `bson:"qty" json:"qty"`
	Stoploss float64 `bson:"stoploss" json:"stoploss"`
	Target   float64 `bson:"target" json:"target"`
	LotSize  int     `bson:"lot_size" json:"lot_size"`
}

// Forecast is the strict-JSON trend forecast produced on demand.
type Forecast struct {
	Date            string           `bson:"date" json:"date"`
	Bias            string           `bson:"bias" json:"bias"` // BULLISH | BEARISH | NEUTRAL
	ProbabilityPct  int              `bson:"probability_pct" json:"probability_pct"`
	Pivot           float64          `bson:"pivot" json:"pivot"`
	Support         []float64        `bson:"support" json:"support"`
	Resistance      []float64        `bson:"resistance" json:"resistance"`
	Reason          string           `bson:"reason" json:"reason"`
	TradeSuggestion *TradeSuggestion `bson:"trade_suggestion,omitempty" json:"trade_suggestion"`
}

// Prediction is a stored forecast log entry.
type Prediction struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	Forecast  `bson:",inline"`
	Raw       string `bson:"raw,omitempty" json:"raw,omitempty"`
}
