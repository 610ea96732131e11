package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditEntry one moderation action, kept for audit
type AuditEntry struct {
	ID       string `bson:"_id,omitempty"`
	RoomID   string `bson:"room_id"`
	ActorID  string `bson:"actor_id"`
	Action   string `bson:"action"`
	TargetID string `bson:"target_id,omitempty"`
	Reason   string `bson:"reason,omitempty"`
	At       int64  `bson:"at"`
}

// AuditRepository records every admin-driven moderation mutation.
type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	FindByRoom(ctx context.Context, roomID string, limit int64) ([]AuditEntry, error)
}

type auditRepository struct {
	coll *mongo.Collection
}

// NewMongoAuditRepository create an AuditRepository on the "moderation_audit"
// collection
func NewMongoAuditRepository(db *mongo.Database) AuditRepository {
	return &auditRepository{
		coll: db.Collection("moderation_audit"),
	}
}

func (r *auditRepository) Record(ctx context.Context, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.At == 0 {
		entry.At = time.Now().Unix()
	}
	_, err := r.coll.InsertOne(ctx, entry)
	return err
}

func (r *auditRepository) FindByRoom(ctx context.Context, roomID string, limit int64) ([]AuditEntry, error) {
	opts := options.Find().
		SetSort(bson.M{"at": -1}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []AuditEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
