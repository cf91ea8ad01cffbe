package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"cityreport/internal/audit"
	"cityreport/internal/auth"
	incidents "cityreport/internal/incidents/domain"
	"cityreport/internal/observability/metrics"
)

// Audit action tags for incident mutations.
const (
	ActionCreateIncident       = "CREATE_INCIDENT"
	ActionUpdateIncidentStatus = "UPDATE_INCIDENT_STATUS"
)

const creationNote = "created"

// Repository is the store contract the incident lifecycle depends on.
type Repository interface {
	Get(ctx context.Context, id string) (*incidents.Incident, error)
	List(ctx context.Context, filter incidents.Filter) ([]incidents.Incident, error)
	Insert(ctx context.Context, incident incidents.Incident) error
	Update(ctx context.Context, id string, apply func(*incidents.Incident) error) (*incidents.Incident, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service owns the incident lifecycle: creation, status transitions and
// the append-only history that mirrors them.
type Service struct {
	repo     Repository
	auditLog audit.Logger
	audits   audit.Lister
	clock    Clock
	logger   *log.Logger
}

// ServiceOption customizes the incident service.
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

// NewService constructs an incident service.
func NewService(repo Repository, auditLog audit.Logger, audits audit.Lister, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("incidents: nil repository")
	}
	if auditLog == nil {
		return nil, errors.New("incidents: nil audit logger")
	}
	service := &Service{
		repo:     repo,
		auditLog: auditLog,
		audits:   audits,
		clock:    systemClock{},
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create registers a new incident. The first history entry is written
// atomically with the record itself.
func (s *Service) Create(ctx context.Context, input incidents.CreateInput) (*incidents.Incident, error) {
	if input.Type == "" {
		return nil, fmt.Errorf("%w: type is required", incidents.ErrValidation)
	}
	if input.Location == "" {
		return nil, fmt.Errorf("%w: location is required", incidents.ErrValidation)
	}

	now := s.clock.Now().UTC()
	status := input.Status
	if status == "" {
		status = incidents.StatusNew
	}
	priority := input.Priority
	if priority == "" {
		priority = incidents.PriorityMedium
	}
	source := input.Source
	if source == "" {
		source = incidents.SourceWeb
	}

	incident := incidents.Incident{
		ID:          newIncidentID(),
		Type:        input.Type,
		Location:    input.Location,
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		Source:      source,
		UserID:      input.UserID,
		Media:       append([]string(nil), input.Media...),
		History: []incidents.HistoryEntry{{
			Time:   now,
			Status: status,
			Note:   creationNote,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, incident); err != nil {
		metrics.IncLifecycleOp("incident", "create", "error")
		return nil, err
	}
	metrics.IncLifecycleOp("incident", "create", "success")

	s.logAudit(ctx, ActionCreateIncident, incident.ID, map[string]any{
		"type":     incident.Type,
		"location": incident.Location,
		"status":   incident.Status,
		"source":   incident.Source,
	})
	return &incident, nil
}

// Get looks up an incident by id. No side effects.
func (s *Service) Get(ctx context.Context, id string) (*incidents.Incident, error) {
	return s.repo.Get(ctx, id)
}

// List returns incidents matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter incidents.Filter) ([]incidents.Incident, error) {
	return s.repo.List(ctx, filter)
}

// UpdateStatus transitions an incident to a new status and appends a
// matching history entry. Any non-empty status is accepted, including a
// repeat of the current one; there is no transition table.
func (s *Service) UpdateStatus(ctx context.Context, id, status, note string) (*incidents.Incident, error) {
	if status == "" {
		return nil, fmt.Errorf("%w: status is required", incidents.ErrValidation)
	}

	now := s.clock.Now().UTC()
	updated, err := s.repo.Update(ctx, id, func(incident *incidents.Incident) error {
		incident.Status = status
		incident.UpdatedAt = now
		incident.History = append(incident.History, incidents.HistoryEntry{
			Time:   now,
			Status: status,
			Note:   note,
		})
		return nil
	})
	if err != nil {
		if !errors.Is(err, incidents.ErrNotFound) {
			metrics.IncLifecycleOp("incident", "update_status", "error")
		}
		return nil, err
	}
	metrics.IncLifecycleOp("incident", "update_status", "success")

	s.logAudit(ctx, ActionUpdateIncidentStatus, id, map[string]any{
		"status": status,
		"note":   note,
	})
	return updated, nil
}

// Statistics scans the current store state and counts incidents by
// status, source and priority. No caching; every call is a fresh scan.
func (s *Service) Statistics(ctx context.Context) (*incidents.Statistics, error) {
	all, err := s.repo.List(ctx, incidents.Filter{})
	if err != nil {
		return nil, err
	}
	stats := &incidents.Statistics{
		TotalIncidents: len(all),
		ByStatus:       make(map[string]int),
		BySource:       make(map[string]int),
		ByPriority:     make(map[string]int),
	}
	for _, incident := range all {
		stats.ByStatus[incident.Status]++
		stats.BySource[incident.Source]++
		stats.ByPriority[incident.Priority]++
	}
	return stats, nil
}

// AuditLogs lists incident audit entries, most recent first.
func (s *Service) AuditLogs(ctx context.Context, action string) ([]audit.Entry, error) {
	if s.audits == nil {
		return nil, nil
	}
	return s.audits.List(ctx, action, audit.DefaultListLimit)
}

// logAudit records an entry best-effort. A failing audit write never
// rolls back or fails the mutation it accompanies.
func (s *Service) logAudit(ctx context.Context, action, targetID string, details map[string]any) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = nil
	}
	entry := audit.Entry{
		Action:    action,
		UserID:    auth.ActorFromContext(ctx),
		TargetID:  targetID,
		Details:   payload,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.auditLog.Log(ctx, entry); err != nil {
		metrics.IncAuditDrop(action)
		s.logger.Printf("incidents: audit write failed action=%s target=%s: %v", action, targetID, err)
	}
}

func newIncidentID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "inc-" + hex.EncodeToString(buf)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
