// internal/domain/models/tick.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tick is one observed last-traded price, captured on each poll and kept
// briefly as raw material for forecasts.
type Tick struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Symbol    string             `bson:"symbol" json:"symbol"`
	LTP       float64            `bson:"ltp" json:"ltp"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
