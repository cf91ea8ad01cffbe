package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	alerts "cityreport/internal/alerts/domain"
)

// Repository is an in-memory alert store for demo/testing.
type Repository struct {
	mu   sync.RWMutex
	data map[string]alerts.Alert
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]alerts.Alert)}
}

// Insert stores a new alert, assigning an id when absent.
func (r *Repository) Insert(ctx context.Context, alert alerts.Alert) (string, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if alert.ID == "" {
		alert.ID = newAlertID()
	}
	if _, exists := r.data[alert.ID]; exists {
		return "", fmt.Errorf("%w: duplicate id %s", alerts.ErrValidation, alert.ID)
	}
	r.data[alert.ID] = cloneAlert(alert)
	return alert.ID, nil
}

// Get returns any alert by id, trashed or not.
func (r *Repository) Get(ctx context.Context, id string) (*alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	alert, ok := r.data[id]
	if !ok {
		return nil, alerts.ErrNotFound
	}
	copied := cloneAlert(alert)
	return &copied, nil
}

// List returns non-trashed alerts matching the filter,
// ordered by priority ascending then created_at descending.
func (r *Repository) List(ctx context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]alerts.Alert, 0, len(r.data))
	for _, alert := range r.data {
		if alert.DeletedAt != nil {
			continue
		}
		if filter.Type != "" && alert.Type != filter.Type {
			continue
		}
		if filter.IsActive != nil && alert.IsActive != *filter.IsActive {
			continue
		}
		result = append(result, cloneAlert(alert))
	}
	sortByPriority(result)
	return result, nil
}

// ListActive returns effectively active alerts, truncated to limit.
func (r *Repository) ListActive(ctx context.Context, now time.Time, limit int) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]alerts.Alert, 0, len(r.data))
	for _, alert := range r.data {
		if !alert.EffectivelyActive(now) {
			continue
		}
		result = append(result, cloneAlert(alert))
	}
	sortByPriority(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListTrash returns trashed alerts, newest-deleted first.
func (r *Repository) ListTrash(ctx context.Context) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]alerts.Alert, 0)
	for _, alert := range r.data {
		if alert.DeletedAt == nil {
			continue
		}
		result = append(result, cloneAlert(alert))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DeletedAt.After(*result[j].DeletedAt)
	})
	return result, nil
}

// Update applies a merge update and returns the post-update document.
func (r *Repository) Update(ctx context.Context, id string, update alerts.Update) (*alerts.Alert, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.data[id]
	if !ok {
		return nil, alerts.ErrNotFound
	}
	if update.RequireTrashed != nil && (alert.DeletedAt != nil) != *update.RequireTrashed {
		return nil, alerts.ErrNotFound
	}

	applyUpdate(&alert, update)
	r.data[id] = alert
	copied := cloneAlert(alert)
	return &copied, nil
}

// Delete removes the alert entirely. It reports false when absent.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return false, nil
	}
	delete(r.data, id)
	return true, nil
}

// Counts derives alert statistics from the current contents.
// Total includes trashed records; the window counts ignore is_active.
func (r *Repository) Counts(ctx context.Context, now time.Time) (alerts.Statistics, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats alerts.Statistics
	for _, alert := range r.data {
		stats.Total++
		if alert.IsActive && !now.Before(alert.StartTime) && !now.After(alert.EndTime) {
			stats.Active++
		}
		if alert.EndTime.Before(now) {
			stats.Expired++
		}
		if alert.StartTime.After(now) {
			stats.Upcoming++
		}
	}
	return stats, nil
}

func applyUpdate(alert *alerts.Alert, update alerts.Update) {
	if update.Title != nil {
		alert.Title = *update.Title
	}
	if update.Content != nil {
		alert.Content = *update.Content
	}
	if update.Type != nil {
		alert.Type = *update.Type
	}
	if update.Priority != nil {
		alert.Priority = *update.Priority
	}
	if update.BannerImage != nil {
		alert.BannerImage = *update.BannerImage
	}
	if update.Gallery != nil {
		alert.Gallery = append([]string(nil), (*update.Gallery)...)
	}
	if update.ArticleURL != nil {
		alert.ArticleURL = *update.ArticleURL
	}
	if update.StartTime != nil {
		alert.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		alert.EndTime = *update.EndTime
	}
	if update.IsActive != nil {
		alert.IsActive = *update.IsActive
	}
	if update.SetDeletedAt != nil {
		deletedAt := *update.SetDeletedAt
		alert.DeletedAt = &deletedAt
	}
	if update.ClearDeletedAt {
		alert.DeletedAt = nil
	}
	if !update.UpdatedAt.IsZero() {
		alert.UpdatedAt = update.UpdatedAt
	}
}

func sortByPriority(list []alerts.Alert) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func cloneAlert(alert alerts.Alert) alerts.Alert {
	copied := alert
	copied.Gallery = append([]string(nil), alert.Gallery...)
	if alert.DeletedAt != nil {
		deletedAt := *alert.DeletedAt
		copied.DeletedAt = &deletedAt
	}
	return copied
}

func newAlertID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "alert-" + hex.EncodeToString(buf)
}
