package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	alerts "cityreport/internal/alerts/domain"
)

const alertColumns = `id, title, content, type, priority, banner_image, gallery,
	article_url, start_time, end_time, is_active, deleted_at, created_by,
	created_at, updated_at`

// Repository is a Postgres-backed alert store for deployments without a
// document database. The gallery is stored as jsonb; trash state is a
// nullable deleted_at column.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("alert pg repo: nil db")
	}
	return &Repository{db: db}, nil
}

// Insert stores a new alert, assigning an id when absent.
func (r *Repository) Insert(ctx context.Context, alert alerts.Alert) (string, error) {
	if alert.ID == "" {
		alert.ID = newAlertID()
	}
	gallery, err := json.Marshal(alert.Gallery)
	if err != nil {
		return "", err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO alerts (
	id, title, content, type, priority, banner_image, gallery,
	article_url, start_time, end_time, is_active, deleted_at, created_by,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $12, $13,
	$14, $15
)`, alert.ID, alert.Title, alert.Content, alert.Type, alert.Priority, nullString(alert.BannerImage),
		gallery, nullString(alert.ArticleURL), alert.StartTime, alert.EndTime, alert.IsActive,
		nullTime(alert.DeletedAt), nullString(alert.CreatedBy), alert.CreatedAt, alert.UpdatedAt)
	if err != nil {
		return "", err
	}
	return alert.ID, nil
}

// Get returns any alert by id, trashed or not.
func (r *Repository) Get(ctx context.Context, id string) (*alerts.Alert, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE id = $1
LIMIT 1`, id)
	return scanAlert(row)
}

// List returns non-trashed alerts matching the filter,
// ordered by priority ascending then created_at descending.
func (r *Repository) List(ctx context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	where := []string{"deleted_at IS NULL"}
	args := []any{}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	query := `
SELECT ` + alertColumns + `
FROM alerts
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY priority ASC, created_at DESC`
	return r.queryAlerts(ctx, query, args...)
}

// ListActive returns effectively active alerts at now, truncated to limit.
func (r *Repository) ListActive(ctx context.Context, now time.Time, limit int) ([]alerts.Alert, error) {
	query := `
SELECT ` + alertColumns + `
FROM alerts
WHERE deleted_at IS NULL
	AND is_active = TRUE
	AND start_time <= $1
	AND end_time >= $1
ORDER BY priority ASC, created_at DESC`
	args := []any{now}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return r.queryAlerts(ctx, query, args...)
}

// ListTrash returns trashed alerts, newest-deleted first.
func (r *Repository) ListTrash(ctx context.Context) ([]alerts.Alert, error) {
	query := `
SELECT ` + alertColumns + `
FROM alerts
WHERE deleted_at IS NOT NULL
ORDER BY deleted_at DESC`
	return r.queryAlerts(ctx, query)
}

// Update applies a merge update and returns the post-update row.
func (r *Repository) Update(ctx context.Context, id string, update alerts.Update) (*alerts.Alert, error) {
	set := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Content != nil {
		add("content", *update.Content)
	}
	if update.Type != nil {
		add("type", *update.Type)
	}
	if update.Priority != nil {
		add("priority", *update.Priority)
	}
	if update.BannerImage != nil {
		add("banner_image", nullString(*update.BannerImage))
	}
	if update.Gallery != nil {
		gallery, err := json.Marshal(*update.Gallery)
		if err != nil {
			return nil, err
		}
		add("gallery", gallery)
	}
	if update.ArticleURL != nil {
		add("article_url", nullString(*update.ArticleURL))
	}
	if update.StartTime != nil {
		add("start_time", *update.StartTime)
	}
	if update.EndTime != nil {
		add("end_time", *update.EndTime)
	}
	if update.IsActive != nil {
		add("is_active", *update.IsActive)
	}
	if update.SetDeletedAt != nil {
		add("deleted_at", *update.SetDeletedAt)
	}
	if update.ClearDeletedAt {
		set = append(set, "deleted_at = NULL")
	}
	if !update.UpdatedAt.IsZero() {
		add("updated_at", update.UpdatedAt)
	}
	if len(set) == 0 {
		return r.Get(ctx, id)
	}

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if update.RequireTrashed != nil {
		if *update.RequireTrashed {
			where += " AND deleted_at IS NOT NULL"
		} else {
			where += " AND deleted_at IS NULL"
		}
	}

	query := `
UPDATE alerts
SET ` + strings.Join(set, ", ") + `
WHERE ` + where + `
RETURNING ` + alertColumns
	row := r.db.QueryRowContext(ctx, query, args...)
	return scanAlert(row)
}

// Delete hard-deletes the alert. It reports false when absent.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Counts derives alert statistics in a single scan.
// Total includes trashed records; the window counts ignore is_active.
func (r *Repository) Counts(ctx context.Context, now time.Time) (alerts.Statistics, error) {
	var stats alerts.Statistics
	row := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE is_active AND start_time <= $1 AND end_time >= $1),
	COUNT(*) FILTER (WHERE end_time < $1),
	COUNT(*) FILTER (WHERE start_time > $1)
FROM alerts`, now)
	if err := row.Scan(&stats.Total, &stats.Active, &stats.Expired, &stats.Upcoming); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *Repository) queryAlerts(ctx context.Context, query string, args ...any) ([]alerts.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var bannerImage, articleURL, createdBy sql.NullString
	var deletedAt sql.NullTime
	var gallery []byte
	err := row.Scan(
		&alert.ID,
		&alert.Title,
		&alert.Content,
		&alert.Type,
		&alert.Priority,
		&bannerImage,
		&gallery,
		&articleURL,
		&alert.StartTime,
		&alert.EndTime,
		&alert.IsActive,
		&deletedAt,
		&createdBy,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, alerts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	alert.BannerImage = bannerImage.String
	alert.ArticleURL = articleURL.String
	alert.CreatedBy = createdBy.String
	if deletedAt.Valid {
		value := deletedAt.Time
		alert.DeletedAt = &value
	}
	if len(gallery) > 0 {
		if err := json.Unmarshal(gallery, &alert.Gallery); err != nil {
			return nil, err
		}
	}
	return &alert, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func newAlertID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "alert-" + hex.EncodeToString(buf)
}
