package deadletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection used by MongoStorage.
const DefaultCollection = "dead_letters"

// MongoStorage implements Storage on a MongoDB collection.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage returns a storage using the given database and
// DefaultCollection.
func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{coll: db.Collection(DefaultCollection)}
}

// EnsureIndexes creates the indexes used by Latest, List and Count.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "job_id", Value: 1}, {Key: "failed_at", Value: -1}}},
		{Keys: bson.D{{Key: "replayed_at", Value: 1}, {Key: "failed_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create dead letter indexes: %w", err)
	}
	return nil
}

// Append implements Storage
func (s *MongoStorage) Append(ctx context.Context, rec *Record) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	}
	return nil
}

// Latest implements Storage
func (s *MongoStorage) Latest(ctx context.Context, jobID string, pendingOnly bool) (*Record, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "failed_at", Value: -1}, {Key: "_id", Value: -1}})

	var rec Record
	err := s.coll.FindOne(ctx, toBSON(Filter{JobID: jobID, IncludeReplayed: !pendingOnly}), opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: job %s", ErrRecordNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkReplayed implements Storage
func (s *MongoStorage) MarkReplayed(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "replayed_at": nil},
		bson.M{"$set": bson.M{"replayed_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return ErrAlreadyReplayed
	}
	return nil
}

// List implements Storage
func (s *MongoStorage) List(ctx context.Context, filter Filter) ([]*Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "failed_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := s.coll.Find(ctx, toBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count implements Storage
func (s *MongoStorage) Count(ctx context.Context, filter Filter) (int, error) {
	n, err := s.coll.CountDocuments(ctx, toBSON(filter))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func toBSON(f Filter) bson.M {
	m := bson.M{}
	if !f.IncludeReplayed {
		m["replayed_at"] = nil
	}
	if f.JobID != "" {
		m["job_id"] = f.JobID
	}
	if f.UserID != "" {
		m["user_id"] = f.UserID
	}
	if f.Type != "" {
		m["type"] = f.Type
	}
	return m
}
