// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps bundles the MongoDB handles the rest of the app is built on.
// In supervised mode every worker process owns its own DBDeps; nothing
// is shared between siblings except the database itself.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
}
