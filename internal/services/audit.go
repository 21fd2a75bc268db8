package services

import (
	"context"
	"time"

	"github.com/casefilehq/casefile-backend/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccessRecord is one share-link access attempt, persisted to MongoDB as an
// append-only audit trail of who looked at which dossier, when, and whether
// the attempt was served, refused, or location-challenged.
type AccessRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID    string             `bson:"owner_id" json:"owner_id"`
	SubjectID  string             `bson:"subject_id" json:"subject_id"`
	ShareToken string             `bson:"share_token" json:"share_token"`
	Status     string             `bson:"status" json:"status"` // "served", "expired", "gone", "location_required"
	ViewerIP   string             `bson:"viewer_ip,omitempty" json:"viewer_ip,omitempty"`
	Latitude   *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude  *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
}

// EnsureAuditIndexes configures indexes for the share_access_log collection.
// Called on startup from main after Mongo has connected.
func EnsureAuditIndexes(ctx context.Context) error {
	col := database.DB.Collection("share_access_log")

	// Compound index on (owner_id, timestamp) to support the activity feed;
	// (share_token, timestamp) for per-link drill-down.
	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_owner_timestamp"),
		},
		{
			Keys: bson.D{
				{Key: "share_token", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_token_timestamp"),
		},
	}

	for _, m := range indexModels {
		if _, err := col.Indexes().CreateOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// SaveAccessRecordAsync persists an access record to MongoDB asynchronously.
// Fire-and-forget: the viewer response never waits on the audit write.
func SaveAccessRecordAsync(rec AccessRecord) {
	if database.DB == nil {
		return
	}
	go func(r AccessRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if r.Timestamp.IsZero() {
			r.Timestamp = time.Now().UTC()
		}

		col := database.DB.Collection("share_access_log")
		_, _ = col.InsertOne(ctx, r)
	}(rec)
}

// LoadAccessRecords returns paginated audit history for an operator's links
// (newest-first scrolling, timestamp cursor).
func LoadAccessRecords(ctx context.Context, ownerID string, before *time.Time, limit int64) ([]AccessRecord, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	col := database.DB.Collection("share_access_log")

	filter := bson.M{
		"owner_id": ownerID,
	}
	if before != nil {
		filter["timestamp"] = bson.M{"$lt": before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit + 1)

	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var records []AccessRecord
	for cur.Next(ctx) {
		var rec AccessRecord
		if err := cur.Decode(&rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(records)) > limit
	if hasMore {
		records = records[:len(records)-1]
	}

	return records, hasMore, nil
}
