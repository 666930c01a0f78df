// internal/app/store/schedstate/store.go
package schedstate

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	controlID = "control"
	leaseID   = "poll-leader"
)

// Control is the shared scheduler switchboard. Because it lives in
// MongoDB rather than process memory, a pause issued to one worker is
// observed by all of them.
type Control struct {
	ID        string     `bson:"_id" json:"-"`
	Paused    bool       `bson:"paused" json:"paused"`
	LastRunAt *time.Time `bson:"last_run_at,omitempty" json:"last_run_at,omitempty"`
	LastError string     `bson:"last_error,omitempty" json:"last_error,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type lease struct {
	ID        string    `bson:"_id"`
	Holder    string    `bson:"holder"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Store keeps scheduler control and leadership state.
type Store struct {
	c *mongo.Collection
}

// New creates a new scheduler state store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("scheduler_state")}
}

// EnsureIndexes is a no-op; both documents are addressed by _id.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	return nil
}

// Control returns the current control document, defaulting to running
// when none has been written yet.
func (s *Store) Control(ctx context.Context) (Control, error) {
	var c Control
	err := s.c.FindOne(ctx, bson.M{"_id": controlID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return Control{ID: controlID}, nil
	}
	if err != nil {
		return Control{}, err
	}
	return c, nil
}

// SetPaused flips the shared pause switch.
func (s *Store) SetPaused(ctx context.Context, paused bool) error {
	update := bson.M{"$set": bson.M{
		"paused":     paused,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": controlID}, update, opts)
	return err
}

// MarkRun records the outcome of a poll cycle. An empty runErr clears
// the last error.
func (s *Store) MarkRun(ctx context.Context, at time.Time, runErr string) error {
	update := bson.M{"$set": bson.M{
		"last_run_at": at.UTC(),
		"last_error":  runErr,
		"updated_at":  time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": controlID}, update, opts)
	return err
}

// AcquireLease attempts to take or renew poll leadership for holder.
// It returns true when holder owns the lease for the next ttl. Exactly
// one holder can win a contested round; the losers see false with no
// error and simply skip the cycle.
func (s *Store) AcquireLease(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"_id": leaseID,
		"$or": []bson.M{
			{"holder": holder},
			{"expires_at": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		"holder":     holder,
		"expires_at": now.Add(ttl),
	}}

	err := s.c.FindOneAndUpdate(ctx, filter, update).Err()
	if err == nil {
		return true, nil
	}
	if err != mongo.ErrNoDocuments {
		return false, err
	}

	// Either the lease doc does not exist yet, or someone else holds a
	// live lease. Try to create it; a duplicate key means we lost.
	_, err = s.c.InsertOne(ctx, lease{ID: leaseID, Holder: holder, ExpiresAt: now.Add(ttl)})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseLease gives up leadership if holder still owns it.
func (s *Store) ReleaseLease(ctx context.Context, holder string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": leaseID, "holder": holder})
	return err
}
