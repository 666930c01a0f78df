// internal/app/store/tokens/store.go
package tokens

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/deepak0937/deepak-watchdog/internal/domain/models"
)

// ErrNoToken is returned when no usable token exists for a provider.
var ErrNoToken = errors.New("no broker token stored")

// expirySkew is subtracted from expires_at so a token that is about to
// lapse mid-request is treated as already gone.
const expirySkew = 60 * time.Second

// Store keeps broker access tokens in MongoDB so every worker process
// sees the same credential after one of them refreshes it.
type Store struct {
	c *mongo.Collection
}

// New creates a new broker token store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("broker_tokens")}
}

// EnsureIndexes is a no-op today; lookups go through _id. Kept so the
// schema pass can treat every store uniformly.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	return nil
}

// Save upserts the token for a provider. expiresAt may be nil for
// tokens whose lifetime the broker does not report.
func (s *Store) Save(ctx context.Context, provider, accessToken string, expiresAt *time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"access_token": accessToken,
			"expires_at":   expiresAt,
			"updated_at":   time.Now().UTC(),
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": provider}, update, opts)
	return err
}

// Get returns the stored token for a provider. Tokens within expirySkew
// of their expiry are reported as ErrNoToken so callers refresh early.
func (s *Store) Get(ctx context.Context, provider string) (models.BrokerToken, error) {
	var tok models.BrokerToken
	err := s.c.FindOne(ctx, bson.M{"_id": provider}).Decode(&tok)
	if err == mongo.ErrNoDocuments {
		return models.BrokerToken{}, ErrNoToken
	}
	if err != nil {
		return models.BrokerToken{}, err
	}
	if tok.AccessToken == "" {
		return models.BrokerToken{}, ErrNoToken
	}
	if tok.ExpiresAt != nil && time.Now().UTC().After(tok.ExpiresAt.Add(-expirySkew)) {
		return models.BrokerToken{}, ErrNoToken
	}
	return tok, nil
}

// Delete removes the stored token for a provider.
func (s *Store) Delete(ctx context.Context, provider string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": provider})
	return err
}
