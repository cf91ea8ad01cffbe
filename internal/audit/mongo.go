package audit

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLog writes audit entries to a system_logs collection.
type MongoLog struct {
	collection *mongo.Collection
}

// NewMongoLog constructs a mongo-backed audit log.
func NewMongoLog(collection *mongo.Collection) (*MongoLog, error) {
	if collection == nil {
		return nil, errors.New("audit mongo: nil collection")
	}
	return &MongoLog{collection: collection}, nil
}

// Log inserts an audit entry.
func (m *MongoLog) Log(ctx context.Context, entry Entry) error {
	if m == nil || m.collection == nil {
		return errors.New("audit mongo: nil log")
	}
	entry = Normalize(entry)
	_, err := m.collection.InsertOne(ctx, entry)
	return err
}

// List returns entries most recent first, optionally filtered by action.
func (m *MongoLog) List(ctx context.Context, action string, limit int) ([]Entry, error) {
	if m == nil || m.collection == nil {
		return nil, errors.New("audit mongo: nil log")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	filter := bson.M{}
	if action != "" {
		filter["action"] = action
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
