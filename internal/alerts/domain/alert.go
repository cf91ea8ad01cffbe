package alerts

import "time"

// Alert categories shown as banners in the mini-app.
const (
	TypeUrgent  = "urgent"
	TypeNews    = "news"
	TypeWarning = "warning"
	TypeInfo    = "info"
)

// ValidType reports whether value is a known alert type.
func ValidType(value string) bool {
	switch value {
	case TypeUrgent, TypeNews, TypeWarning, TypeInfo:
		return true
	default:
		return false
	}
}

// Alert represents a time-windowed announcement banner.
// A lower priority value sorts first. DeletedAt marks the record as
// trashed; trashed records never appear in normal listings.
type Alert struct {
	ID          string     `json:"id" bson:"_id"`
	Title       string     `json:"title" bson:"title"`
	Content     string     `json:"content" bson:"content"`
	Type        string     `json:"type" bson:"type"`
	Priority    int        `json:"priority" bson:"priority"`
	BannerImage string     `json:"banner_image,omitempty" bson:"banner_image,omitempty"`
	Gallery     []string   `json:"gallery,omitempty" bson:"gallery,omitempty"`
	ArticleURL  string     `json:"article_url,omitempty" bson:"article_url,omitempty"`
	StartTime   time.Time  `json:"start_time" bson:"start_time"`
	EndTime     time.Time  `json:"end_time" bson:"end_time"`
	IsActive    bool       `json:"is_active" bson:"is_active"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// EffectivelyActive reports whether the alert should be shown at now:
// administratively active, not trashed, and now inside [start, end].
func (a Alert) EffectivelyActive(now time.Time) bool {
	if !a.IsActive || a.DeletedAt != nil {
		return false
	}
	return !now.Before(a.StartTime) && !now.After(a.EndTime)
}

// CreateInput carries the fields accepted at alert creation.
// IsActive defaults to true unless explicitly set false.
type CreateInput struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Type        string     `json:"type"`
	Priority    int        `json:"priority"`
	BannerImage string     `json:"banner_image,omitempty"`
	Gallery     []string   `json:"gallery,omitempty"`
	ArticleURL  string     `json:"article_url,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	IsActive    *bool      `json:"is_active,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
}

// Patch is a shallow merge-patch: nil fields are left untouched on the
// stored record, non-nil fields overwrite it.
type Patch struct {
	Title       *string    `json:"title,omitempty"`
	Content     *string    `json:"content,omitempty"`
	Type        *string    `json:"type,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	BannerImage *string    `json:"banner_image,omitempty"`
	Gallery     *[]string  `json:"gallery,omitempty"`
	ArticleURL  *string    `json:"article_url,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

// ListFilter selects non-trashed alerts by exact field match.
type ListFilter struct {
	Type     string
	IsActive *bool
}

// Statistics summarizes the alert collection. Total counts every record
// including trashed ones; Active applies the read-time window; Expired
// and Upcoming consider only the window, not is_active.
type Statistics struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Expired  int64 `json:"expired"`
	Upcoming int64 `json:"upcoming"`
}
