// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/deepak0937/deepak-watchdog/internal/app/store/decisions"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/loginstate"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/predictions"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/schedstate"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/ticks"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/tokens"
	"github.com/deepak0937/deepak-watchdog/internal/app/store/trades"
)

// connectTimeout bounds the initial connect and ping. A database that is
// not there is a fatal startup error, surfaced fast rather than hung on.
const connectTimeout = 10 * time.Second

// ConnectDB opens the MongoDB client and verifies it answers.
func ConnectDB(ctx context.Context, cfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("mongo connected", zap.String("database", cfg.MongoDatabase))
	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(cfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates every index the stores rely on. Index creation is
// idempotent, so concurrent workers racing through startup are fine.
func EnsureSchema(ctx context.Context, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase
	for name, ensure := range map[string]func(context.Context) error{
		"decisions":     decisions.New(db).EnsureIndexes,
		"broker_tokens": tokens.New(db).EnsureIndexes,
		"trades":        trades.New(db).EnsureIndexes,
		"predictions":   predictions.New(db).EnsureIndexes,
		"ticks":         ticks.New(db).EnsureIndexes,
		"sched_state":   schedstate.New(db).EnsureIndexes,
		"login_states":  loginstate.New(db).EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	logger.Debug("indexes ensured")
	return nil
}
