// internal/app/store/ticks/store.go
package ticks

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// RecentLimit caps how many ticks Recent may return.
const RecentLimit = 200

// ttl is how long a tick lives before Mongo reaps it. Forecasts only
// look at the last couple hundred ticks, so an hour is plenty.
const ttl = time.Hour

// Store keeps the rolling window of observed last-traded prices.
type Store struct {
	c *mongo.Collection
}

// New creates a new ticks store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("ticks")}
}

// EnsureIndexes creates the TTL index that expires old ticks and the
// per-symbol recency index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(int32(ttl / time.Second)).
				SetName("idx_ticks_ttl"),
		},
		{
			Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_ticks_symbol_created"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Insert records one observed price.
func (s *Store) Insert(ctx context.Context, tick *models.Tick) error {
	if tick.ID.IsZero() {
		tick.ID = primitive.NewObjectID()
	}
	if tick.CreatedAt.IsZero() {
		tick.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, tick)
	return err
}

// Recent returns the newest ticks for a symbol, newest first.
func (s *Store) Recent(ctx context.Context, symbol string, limit int) ([]models.Tick, error) {
	if limit <= 0 || limit > RecentLimit {
		limit = RecentLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.c.Find(ctx, bson.M{"symbol": symbol}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Tick{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
