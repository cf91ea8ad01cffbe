package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	alerts "cityreport/internal/alerts/domain"
	"cityreport/internal/audit"
	"cityreport/internal/auth"
	"cityreport/internal/observability/metrics"
)

// Audit action tags for alert mutations.
const (
	ActionCreateAlert          = "CREATE_ALERT"
	ActionUpdateAlert          = "UPDATE_ALERT"
	ActionActivateAlert        = "ACTIVATE_ALERT"
	ActionDeactivateAlert      = "DEACTIVATE_ALERT"
	ActionSoftDeleteAlert      = "SOFT_DELETE_ALERT"
	ActionRestoreAlert         = "RESTORE_ALERT"
	ActionPermanentDeleteAlert = "PERMANENT_DELETE_ALERT"
)

// DefaultActiveLimit caps ListActive when the caller passes none.
const DefaultActiveLimit = 10

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service owns the alert lifecycle: creation, updates, the
// administrative toggle, trash (soft delete/restore) and permanent
// deletion. Effective activation is always computed at read time.
type Service struct {
	repo        alerts.Repository
	auditLog    audit.Logger
	clock       Clock
	logger      *log.Logger
	activeLimit int
}

// ServiceOption customizes the alert service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLogger assigns a logger for audit-failure warnings.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithActiveLimit overrides the default ListActive truncation.
func WithActiveLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.activeLimit = limit
		}
	}
}

// NewService constructs an alert service.
func NewService(repo alerts.Repository, auditLog audit.Logger, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("alerts: nil repository")
	}
	if auditLog == nil {
		return nil, errors.New("alerts: nil audit logger")
	}
	service := &Service{
		repo:        repo,
		auditLog:    auditLog,
		clock:       systemClock{},
		logger:      log.Default(),
		activeLimit: DefaultActiveLimit,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create registers a new alert. Validation happens before any store
// write; is_active defaults to true unless explicitly false.
func (s *Service) Create(ctx context.Context, input alerts.CreateInput) (*alerts.Alert, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", alerts.ErrValidation)
	}
	if input.Content == "" {
		return nil, fmt.Errorf("%w: content is required", alerts.ErrValidation)
	}
	if !alerts.ValidType(input.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", alerts.ErrValidation, input.Type)
	}
	if input.StartTime.IsZero() || input.EndTime.IsZero() {
		return nil, fmt.Errorf("%w: start_time and end_time are required", alerts.ErrValidation)
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, alerts.ErrInvalidWindow
	}

	now := s.clock.Now().UTC()
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	alert := alerts.Alert{
		Title:       input.Title,
		Content:     input.Content,
		Type:        input.Type,
		Priority:    input.Priority,
		BannerImage: input.BannerImage,
		Gallery:     append([]string(nil), input.Gallery...),
		ArticleURL:  input.ArticleURL,
		StartTime:   input.StartTime.UTC(),
		EndTime:     input.EndTime.UTC(),
		IsActive:    isActive,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := s.repo.Insert(ctx, alert)
	if err != nil {
		metrics.IncLifecycleOp("alert", "create", "error")
		return nil, err
	}
	alert.ID = id
	metrics.IncLifecycleOp("alert", "create", "success")

	s.logAudit(ctx, ActionCreateAlert, id, map[string]any{
		"title": alert.Title,
		"type":  alert.Type,
	})
	return &alert, nil
}

// Get looks up an alert by id, trashed or not.
func (s *Service) Get(ctx context.Context, id string) (*alerts.Alert, error) {
	return s.repo.Get(ctx, id)
}

// List returns non-trashed alerts matching the filter.
func (s *Service) List(ctx context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	return s.repo.List(ctx, filter)
}

// Update merges the patch onto the stored alert. Fields omitted from
// the patch are untouched. When the patch moves either window endpoint
// the merged window is re-validated before anything is written.
// The check reads the current record and the later write is not
// conditioned on it, so two concurrent patches moving opposite
// endpoints can still commit a crossed window.
func (s *Service) Update(ctx context.Context, id string, patch alerts.Patch) (*alerts.Alert, error) {
	if patch.Type != nil && !alerts.ValidType(*patch.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", alerts.ErrValidation, *patch.Type)
	}
	if patch.StartTime != nil || patch.EndTime != nil {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		start := current.StartTime
		end := current.EndTime
		if patch.StartTime != nil {
			start = *patch.StartTime
		}
		if patch.EndTime != nil {
			end = *patch.EndTime
		}
		if !end.After(start) {
			return nil, alerts.ErrInvalidWindow
		}
	}

	updated, err := s.repo.Update(ctx, id, alerts.Update{
		Title:       patch.Title,
		Content:     patch.Content,
		Type:        patch.Type,
		Priority:    patch.Priority,
		BannerImage: patch.BannerImage,
		Gallery:     patch.Gallery,
		ArticleURL:  patch.ArticleURL,
		StartTime:   utcTime(patch.StartTime),
		EndTime:     utcTime(patch.EndTime),
		IsActive:    patch.IsActive,
		UpdatedAt:   s.clock.Now().UTC(),
	})
	if err != nil {
		if !errors.Is(err, alerts.ErrNotFound) {
			metrics.IncLifecycleOp("alert", "update", "error")
		}
		return nil, err
	}
	metrics.IncLifecycleOp("alert", "update", "success")

	details, marshalErr := json.Marshal(patch)
	if marshalErr != nil {
		details = nil
	}
	s.logAuditRaw(ctx, ActionUpdateAlert, id, details)
	return updated, nil
}

// ToggleStatus flips the administrative is_active switch.
func (s *Service) ToggleStatus(ctx context.Context, id string, isActive bool) (*alerts.Alert, error) {
	updated, err := s.repo.Update(ctx, id, alerts.Update{
		IsActive:  &isActive,
		UpdatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		if !errors.Is(err, alerts.ErrNotFound) {
			metrics.IncLifecycleOp("alert", "toggle", "error")
		}
		return nil, err
	}
	metrics.IncLifecycleOp("alert", "toggle", "success")

	action := ActionDeactivateAlert
	if isActive {
		action = ActionActivateAlert
	}
	s.logAudit(ctx, action, id, map[string]any{"is_active": isActive})
	return updated, nil
}

// SoftDelete moves an alert to trash. The record is also forced
// inactive so it drops out of every effectively-active computation
// regardless of its window. Deleting an already trashed alert fails.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.DeletedAt != nil {
		return alerts.ErrAlreadyDeleted
	}

	now := s.clock.Now().UTC()
	inactive := false
	notTrashed := false
	_, err = s.repo.Update(ctx, id, alerts.Update{
		IsActive:       &inactive,
		SetDeletedAt:   &now,
		RequireTrashed: &notTrashed,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			// Lost the race against a concurrent soft delete.
			return alerts.ErrAlreadyDeleted
		}
		metrics.IncLifecycleOp("alert", "soft_delete", "error")
		return err
	}
	metrics.IncLifecycleOp("alert", "soft_delete", "success")

	s.logAudit(ctx, ActionSoftDeleteAlert, id, map[string]any{"title": current.Title})
	return nil
}

// ListTrash returns trashed alerts, newest-deleted first.
func (s *Service) ListTrash(ctx context.Context) ([]alerts.Alert, error) {
	return s.repo.ListTrash(ctx)
}

// Restore clears the trash marker. It does not re-activate the alert;
// administrators must toggle is_active explicitly afterwards.
// Restoring an alert that is not trashed reports ErrNotFound.
func (s *Service) Restore(ctx context.Context, id string) (*alerts.Alert, error) {
	trashed := true
	restored, err := s.repo.Update(ctx, id, alerts.Update{
		ClearDeletedAt: true,
		RequireTrashed: &trashed,
		UpdatedAt:      s.clock.Now().UTC(),
	})
	if err != nil {
		if !errors.Is(err, alerts.ErrNotFound) {
			metrics.IncLifecycleOp("alert", "restore", "error")
		}
		return nil, err
	}
	metrics.IncLifecycleOp("alert", "restore", "success")

	s.logAudit(ctx, ActionRestoreAlert, id, map[string]any{"title": restored.Title})
	return restored, nil
}

// PermanentDelete removes the alert from the store entirely. The audit
// entry, written with details captured before removal, is the only
// remaining evidence the record ever existed.
func (s *Service) PermanentDelete(ctx context.Context, id string) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		metrics.IncLifecycleOp("alert", "permanent_delete", "error")
		return err
	}
	if !deleted {
		return alerts.ErrNotFound
	}
	metrics.IncLifecycleOp("alert", "permanent_delete", "success")

	s.logAudit(ctx, ActionPermanentDeleteAlert, id, map[string]any{
		"title":               current.Title,
		"permanently_deleted": true,
	})
	return nil
}

// ListActive returns the banners to show right now, ordered by
// priority then recency and truncated to limit.
func (s *Service) ListActive(ctx context.Context, limit int) ([]alerts.Alert, error) {
	if limit <= 0 {
		limit = s.activeLimit
	}
	return s.repo.ListActive(ctx, s.clock.Now().UTC(), limit)
}

// Statistics derives counts from current store state. Total includes
// trashed records, matching the dashboard's historical behavior.
func (s *Service) Statistics(ctx context.Context) (alerts.Statistics, error) {
	return s.repo.Counts(ctx, s.clock.Now().UTC())
}

func (s *Service) logAudit(ctx context.Context, action, targetID string, details map[string]any) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = nil
	}
	s.logAuditRaw(ctx, action, targetID, payload)
}

// logAuditRaw records an entry best-effort; failures are warnings only
// and never roll back the mutation they accompany.
func (s *Service) logAuditRaw(ctx context.Context, action, targetID string, details json.RawMessage) {
	entry := audit.Entry{
		Action:    action,
		UserID:    auth.ActorFromContext(ctx),
		TargetID:  targetID,
		Details:   details,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.auditLog.Log(ctx, entry); err != nil {
		metrics.IncAuditDrop(action)
		s.logger.Printf("alerts: audit write failed action=%s target=%s: %v", action, targetID, err)
	}
}

func utcTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
