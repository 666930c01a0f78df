// internal/domain/models/optionchain.go
package models

import "time"

// IST is the exchange timezone. Market timestamps are normalized to it
// regardless of where the service runs.
var IST = time.FixedZone("IST", 5*3600+30*60)

// OptionLeg is one contract row in a normalized option chain.
type OptionLeg struct {
	Strike     float64   `bson:"strike" json:"strike"`
	Expiry     time.Time `bson:"expiry" json:"expiry"`
	Type       string    `bson:"type" json:"type"` // CE | PE
	OI         int64     `bson:"oi" json:"oi"`
	ChangeInOI int64     `bson:"change_in_oi" json:"change_in_oi"`
	LTP        float64   `bson:"ltp" json:"ltp"`
	Volume     int64     `bson:"volume" json:"volume"`
}

// OptionChain is the normalized chain snapshot assembled from whichever
// envelope shape the provider happened to answer with.
type OptionChain struct {
	Symbol     string      `bson:"symbol" json:"symbol"`
	Timestamp  time.Time   `bson:"timestamp" json:"timestamp"`
	Underlying float64     `bson:"underlying" json:"underlying"`
	CE         []OptionLeg `bson:"ce" json:"ce"`
	PE         []OptionLeg `bson:"pe" json:"pe"`
}
