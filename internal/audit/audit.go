package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"
)

// SystemActor is recorded when no authenticated user performed the action.
const SystemActor = "system"

// Entry represents an audit log entry.
type Entry struct {
	ID        string          `json:"id" bson:"_id"`
	Action    string          `json:"action" bson:"action"`
	UserID    string          `json:"userId" bson:"userId"`
	TargetID  string          `json:"targetId,omitempty" bson:"targetId,omitempty"`
	Details   json.RawMessage `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// Lister reads back audit entries, most recent first.
type Lister interface {
	List(ctx context.Context, action string, limit int) ([]Entry, error)
}

// NewID generates a random audit id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "audit-" + hex.EncodeToString(buf)
}

// Normalize fills defaulted fields on an entry before it is stored.
func Normalize(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.UserID == "" {
		entry.UserID = SystemActor
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return entry
}
