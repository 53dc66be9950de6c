package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Healthcheck returns a probe that runs ping against db, the database that
// holds the dead letter collection.
func Healthcheck(db *mongo.Database) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		return nil
	}
}
