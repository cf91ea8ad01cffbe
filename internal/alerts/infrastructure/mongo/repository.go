package mongo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	alerts "cityreport/internal/alerts/domain"
)

// Repository is the Mongo-backed alert store. Lifecycle preconditions
// are expressed as query predicates so a single FindOneAndUpdate is
// both the check and the mutation.
type Repository struct {
	collection *mongo.Collection
}

// NewRepository constructs a repository over an alerts collection.
func NewRepository(collection *mongo.Collection) (*Repository, error) {
	if collection == nil {
		return nil, errors.New("alert mongo repo: nil collection")
	}
	return &Repository{collection: collection}, nil
}

// Insert stores a new alert, assigning an id when absent.
func (r *Repository) Insert(ctx context.Context, alert alerts.Alert) (string, error) {
	if alert.ID == "" {
		alert.ID = newAlertID()
	}
	if _, err := r.collection.InsertOne(ctx, alert); err != nil {
		return "", err
	}
	return alert.ID, nil
}

// Get returns any alert by id, trashed or not.
func (r *Repository) Get(ctx context.Context, id string) (*alerts.Alert, error) {
	var alert alerts.Alert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, alerts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// List returns non-trashed alerts matching the filter,
// ordered by priority ascending then created_at descending.
func (r *Repository) List(ctx context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	query := bson.M{"deleted_at": bson.M{"$exists": false}}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}
	return r.find(ctx, query, prioritySort(), 0)
}

// ListActive returns effectively active alerts at now, truncated to limit.
func (r *Repository) ListActive(ctx context.Context, now time.Time, limit int) ([]alerts.Alert, error) {
	query := bson.M{
		"deleted_at": bson.M{"$exists": false},
		"is_active":  true,
		"start_time": bson.M{"$lte": now},
		"end_time":   bson.M{"$gte": now},
	}
	return r.find(ctx, query, prioritySort(), limit)
}

// ListTrash returns trashed alerts, newest-deleted first.
func (r *Repository) ListTrash(ctx context.Context) ([]alerts.Alert, error) {
	query := bson.M{"deleted_at": bson.M{"$exists": true}}
	return r.find(ctx, query, bson.D{{Key: "deleted_at", Value: -1}}, 0)
}

// Update applies a merge update and returns the post-update document.
func (r *Repository) Update(ctx context.Context, id string, update alerts.Update) (*alerts.Alert, error) {
	filter := bson.M{"_id": id}
	if update.RequireTrashed != nil {
		filter["deleted_at"] = bson.M{"$exists": *update.RequireTrashed}
	}

	set := bson.M{}
	setField := func(key string, value any) { set[key] = value }
	if update.Title != nil {
		setField("title", *update.Title)
	}
	if update.Content != nil {
		setField("content", *update.Content)
	}
	if update.Type != nil {
		setField("type", *update.Type)
	}
	if update.Priority != nil {
		setField("priority", *update.Priority)
	}
	if update.BannerImage != nil {
		setField("banner_image", *update.BannerImage)
	}
	if update.Gallery != nil {
		setField("gallery", *update.Gallery)
	}
	if update.ArticleURL != nil {
		setField("article_url", *update.ArticleURL)
	}
	if update.StartTime != nil {
		setField("start_time", *update.StartTime)
	}
	if update.EndTime != nil {
		setField("end_time", *update.EndTime)
	}
	if update.IsActive != nil {
		setField("is_active", *update.IsActive)
	}
	if update.SetDeletedAt != nil {
		setField("deleted_at", *update.SetDeletedAt)
	}
	if !update.UpdatedAt.IsZero() {
		setField("updated_at", update.UpdatedAt)
	}

	mutation := bson.M{"$set": set}
	if update.ClearDeletedAt {
		mutation["$unset"] = bson.M{"deleted_at": ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var alert alerts.Alert
	err := r.collection.FindOneAndUpdate(ctx, filter, mutation, opts).Decode(&alert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, alerts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// Delete hard-deletes the alert. It reports false when absent.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

// Counts derives alert statistics with one count per bucket.
// Total includes trashed records; the window counts ignore is_active.
func (r *Repository) Counts(ctx context.Context, now time.Time) (alerts.Statistics, error) {
	var stats alerts.Statistics
	var err error
	if stats.Total, err = r.collection.CountDocuments(ctx, bson.M{}); err != nil {
		return stats, err
	}
	activeQuery := bson.M{
		"is_active":  true,
		"start_time": bson.M{"$lte": now},
		"end_time":   bson.M{"$gte": now},
	}
	if stats.Active, err = r.collection.CountDocuments(ctx, activeQuery); err != nil {
		return stats, err
	}
	if stats.Expired, err = r.collection.CountDocuments(ctx, bson.M{"end_time": bson.M{"$lt": now}}); err != nil {
		return stats, err
	}
	if stats.Upcoming, err = r.collection.CountDocuments(ctx, bson.M{"start_time": bson.M{"$gt": now}}); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *Repository) find(ctx context.Context, query bson.M, sort bson.D, limit int) ([]alerts.Alert, error) {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []alerts.Alert
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func prioritySort() bson.D {
	return bson.D{{Key: "priority", Value: 1}, {Key: "created_at", Value: -1}}
}

func newAlertID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "alert-" + hex.EncodeToString(buf)
}
