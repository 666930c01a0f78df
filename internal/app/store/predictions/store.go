// internal/app/store/predictions/store.go
package predictions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// Keep caps how many forecasts are retained; older ones are trimmed on
// insert so the collection cannot grow without bound.
const Keep = 200

// Store persists next-day forecasts.
type Store struct {
	c *mongo.Collection
}

// New creates a new predictions store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("predictions")}
}

// EnsureIndexes creates the recency index used by Recent and the trim.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_predictions_created"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Insert appends a forecast and trims the collection to the newest Keep
// documents. The trim is best effort; a failure there does not undo the
// insert.
func (s *Store) Insert(ctx context.Context, p *models.Prediction) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return err
	}
	return s.trim(ctx)
}

func (s *Store) trim(ctx context.Context) error {
	n, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil || n <= Keep {
		return err
	}

	// Find the cutoff document and delete everything at or before it.
	opts := options.FindOne().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(Keep - 1).
		SetProjection(bson.M{"created_at": 1})
	var cutoff struct {
		CreatedAt time.Time `bson:"created_at"`
	}
	if err := s.c.FindOne(ctx, bson.M{}, opts).Decode(&cutoff); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil
		}
		return err
	}
	_, err = s.c.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff.CreatedAt}})
	return err
}

// Recent returns the newest forecasts, up to limit (default 20).
func (s *Store) Recent(ctx context.Context, limit int) ([]models.Prediction, error) {
	if limit <= 0 || limit > Keep {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Prediction{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
