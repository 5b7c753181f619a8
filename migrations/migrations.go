package migrations

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-service/internal/repository"
)

// OrderIndexes backs the admin listing and the idempotency key lookup.
func OrderIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("status_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt"),
		},
		{
			Keys:    bson.D{{Key: "idempotencyKey", Value: 1}},
			Options: options.Index().SetName("idempotencyKey").SetUnique(true).SetSparse(true),
		},
	}
}

func ProductIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("category"),
		},
	}
}

// EnsureIndexes creates the collection indexes if they do not exist.
func EnsureIndexes(ctx context.Context, retries int, db *mongo.Database) error {
	if err := ensure(ctx, retries, db.Collection(repository.OrdersCollection), OrderIndexes()); err != nil {
		return err
	}
	return ensure(ctx, retries, db.Collection(repository.ProductsCollection), ProductIndexes())
}

func ensure(ctx context.Context, retries int, coll *mongo.Collection, models []mongo.IndexModel) error {
	_, err := coll.Indexes().CreateMany(ctx, models)
	// Retry creating the indexes
	for i := 0; err != nil && i < retries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
		_, err = coll.Indexes().CreateMany(ctx, models)
	}
	if err != nil {
		return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
	}
	return nil
}
