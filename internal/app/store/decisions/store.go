// internal/app/store/decisions/store.go
package decisions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// ListLimit caps how many decisions a single query may return.
const ListLimit = 100

// Store provides access to the decisions collection, the append-only
// record of every advice the watchdog produced.
type Store struct {
	c *mongo.Collection
}

// New creates a new decisions store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("decisions")}
}

// EnsureIndexes creates indexes for the latest/history queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_decisions_created"),
		},
		{
			Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_decisions_symbol_created"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Insert appends a decision and fills in its ID and CreatedAt.
func (s *Store) Insert(ctx context.Context, d *models.Decision) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, d)
	return err
}

// Latest returns the most recent decision, or (nil, nil) when the
// collection is empty.
func (s *Store) Latest(ctx context.Context) (*models.Decision, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var d models.Decision
	err := s.c.FindOne(ctx, bson.M{}, opts).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns decisions newest first, optionally filtered by symbol.
// limit values outside (0, ListLimit] are clamped to ListLimit.
func (s *Store) List(ctx context.Context, symbol string, limit int) ([]models.Decision, error) {
	if limit <= 0 || limit > ListLimit {
		limit = ListLimit
	}
	filter := bson.M{}
	if symbol != "" {
		filter["symbol"] = symbol
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Decision{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the total number of stored decisions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
