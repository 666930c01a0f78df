// internal/app/store/trades/store.go
package trades

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// ErrActiveTradeExists is returned when a trade is placed while another
// trade is still active.
var ErrActiveTradeExists = errors.New("an active trade already exists")

// Store persists simulated and live trades. A partial unique index on
// {active: true} makes "at most one active trade" hold even when several
// worker processes race on the insert.
type Store struct {
	c *mongo.Collection
}

// New creates a new trades store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("trades")}
}

// EnsureIndexes creates the partial unique index that guards the
// one-active-trade invariant, plus a history sort index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "active", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}).
				SetName("idx_trades_single_active"),
		},
		{
			Keys:    bson.D{{Key: "placed_at", Value: -1}},
			Options: options.Index().SetName("idx_trades_placed"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Place inserts a trade as the active one. Returns ErrActiveTradeExists
// if another active trade already holds the slot.
func (s *Store) Place(ctx context.Context, tr *models.Trade) error {
	if tr.ID.IsZero() {
		tr.ID = primitive.NewObjectID()
	}
	if tr.PlacedAt.IsZero() {
		tr.PlacedAt = time.Now().UTC()
	}
	tr.Active = true

	_, err := s.c.InsertOne(ctx, tr)
	if mongo.IsDuplicateKeyError(err) {
		return ErrActiveTradeExists
	}
	return err
}

// Active returns the currently active trade, or (nil, nil) when there
// is none.
func (s *Store) Active(ctx context.Context) (*models.Trade, error) {
	var tr models.Trade
	err := s.c.FindOne(ctx, bson.M{"active": true}).Decode(&tr)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// SetOrderID records the broker order id on a reserved trade, along
// with whether the broker answered in simulate mode.
func (s *Store) SetOrderID(ctx context.Context, id primitive.ObjectID, orderID string, simulated bool) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"order_id": orderID, "simulated": simulated}})
	return err
}

// Discard removes a reserved trade outright. Used to roll back the
// active slot when broker placement fails after the reserve.
func (s *Store) Discard(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ClearActive closes the active trade, if any. Reports whether a trade
// was actually cleared.
func (s *Store) ClearActive(ctx context.Context) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"active": true},
		bson.M{"$set": bson.M{"active": false, "closed_at": now}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// History returns trades newest first, up to limit (default 50).
func (s *Store) History(ctx context.Context, limit int) ([]models.Trade, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "placed_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Trade{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
