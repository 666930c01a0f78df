// internal/domain/models/trade.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderRequest is the trade payload accepted by the trade endpoints.
// Required numeric fields are pointers so the risk gate can tell an
// absent field from a zero and name it in the rejection reason.
type OrderRequest struct {
	Exchange        string   `json:"exchange"`
	TradingSymbol   string   `json:"tradingsymbol"`
	TransactionType string   `json:"transaction_type"` // BUY | SELL
	Qty             *int     `json:"qty"`
	LotSize         int      `json:"lot_size"` // defaults to 1
	Entry           *float64 `json:"entry"`
	Stoploss        *float64 `json:"stoploss"`
	Product         string   `json:"product"`    // defaults to MIS
	OrderType       string   `json:"order_type"` // MARKET | LIMIT, defaults to MARKET
	Price           *float64 `json:"price"`      // limit price, LIMIT orders only
}

// Trade is a stored order. At most one document has Active set; that is
// the single live trade the service tracks.
type Trade struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Active          bool               `bson:"active" json:"active"`
	Exchange        string             `bson:"exchange" json:"exchange"`
	TradingSymbol   string             `bson:"tradingsymbol" json:"tradingsymbol"`
	TransactionType string             `bson:"transaction_type" json:"transaction_type"`
	Product         string             `bson:"product" json:"product"`
	OrderType       string             `bson:"order_type" json:"order_type"`
	Qty             int                `bson:"qty" json:"qty"`
	LotSize         int                `bson:"lot_size" json:"lot_size"`
	EntryPrice      float64            `bson:"entry_price" json:"entry_price"`
	Stoploss        float64            `bson:"stoploss" json:"stoploss"`
	WorstLoss       float64            `bson:"worst_loss" json:"worst_loss"`
	OrderID         string             `bson:"order_id" json:"order_id"`
	Simulated       bool               `bson:"simulated" json:"simulated"`
	PlacedAt        time.Time          `bson:"placed_at" json:"placed_at"`
	ClosedAt        *time.Time         `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
}
