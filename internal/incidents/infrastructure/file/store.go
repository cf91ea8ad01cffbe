package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"cityreport/internal/audit"
	incidents "cityreport/internal/incidents/domain"
)

// Store keeps incidents and their audit trail in memory, mirrored to a
// single JSON document on disk. Every mutation rewrites the whole file
// before it is acknowledged, so the on-disk view never trails the
// in-memory one by more than the latest completed call. A failed write
// rolls the in-memory change back.
type Store struct {
	mu        sync.RWMutex
	path      string
	incidents map[string]incidents.Incident
	ledger    *audit.Ledger
}

type snapshot struct {
	Incidents []incidents.Incident `json:"incidents"`
	AuditLogs []audit.Entry        `json:"auditLogs"`
}

// NewStore opens a store backed by the given file, loading any existing
// snapshot. An empty path keeps the store memory-only (tests, demos).
func NewStore(path string, auditCapacity int) (*Store, error) {
	store := &Store{
		path:      path,
		incidents: make(map[string]incidents.Incident),
		ledger:    audit.NewLedger(auditCapacity),
	}
	if path == "" {
		return store, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("incident store: read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("incident store: decode snapshot: %w", err)
	}
	for _, incident := range snap.Incidents {
		store.incidents[incident.ID] = incident
	}
	store.ledger.Restore(snap.AuditLogs)
	return store, nil
}

// Get returns a copy of the incident, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*incidents.Incident, error) {
	_ = ctx
	if id == "" {
		return nil, incidents.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	incident, ok := s.incidents[id]
	if !ok {
		return nil, incidents.ErrNotFound
	}
	copied := cloneIncident(incident)
	return &copied, nil
}

// List returns copies of matching incidents sorted by createdAt descending.
func (s *Store) List(ctx context.Context, filter incidents.Filter) ([]incidents.Incident, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]incidents.Incident, 0, len(s.incidents))
	for _, incident := range s.incidents {
		if !filter.Matches(incident) {
			continue
		}
		result = append(result, cloneIncident(incident))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Insert stores a new incident and persists the snapshot.
func (s *Store) Insert(ctx context.Context, incident incidents.Incident) error {
	_ = ctx
	if incident.ID == "" {
		return fmt.Errorf("%w: empty id", incidents.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.incidents[incident.ID]; exists {
		return fmt.Errorf("%w: duplicate id %s", incidents.ErrValidation, incident.ID)
	}
	s.incidents[incident.ID] = cloneIncident(incident)
	if err := s.persistLocked(); err != nil {
		delete(s.incidents, incident.ID)
		return err
	}
	return nil
}

// Update applies a read-modify-write and returns the post-update incident.
// The mutation is rolled back when the snapshot write fails.
func (s *Store) Update(ctx context.Context, id string, apply func(*incidents.Incident) error) (*incidents.Incident, error) {
	_ = ctx
	if apply == nil {
		return nil, errors.New("incident store: nil apply func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.incidents[id]
	if !ok {
		return nil, incidents.ErrNotFound
	}
	updated := cloneIncident(previous)
	if err := apply(&updated); err != nil {
		return nil, err
	}
	updated.ID = id
	s.incidents[id] = updated
	if err := s.persistLocked(); err != nil {
		s.incidents[id] = previous
		return nil, err
	}
	result := cloneIncident(updated)
	return &result, nil
}

// Delete removes the incident entirely. It reports false when absent.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, ok := s.incidents[id]
	if !ok {
		return false, nil
	}
	delete(s.incidents, id)
	if err := s.persistLocked(); err != nil {
		s.incidents[id] = previous
		return false, err
	}
	return true, nil
}

// Log appends an audit entry to the ledger and persists the snapshot.
// Store implements audit.Logger so the trail shares the incident file.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.ledger.Snapshot()
	if err := s.ledger.Log(ctx, entry); err != nil {
		return err
	}
	if err := s.persistLocked(); err != nil {
		s.ledger.Restore(before)
		return err
	}
	return nil
}

// ListAudit returns audit entries most recent first.
func (s *Store) ListAudit(ctx context.Context, action string, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.List(ctx, action, limit)
}

// Audits exposes the ledger as an audit.Lister.
func (s *Store) Audits() audit.Lister { return auditView{store: s} }

type auditView struct{ store *Store }

func (v auditView) List(ctx context.Context, action string, limit int) ([]audit.Entry, error) {
	return v.store.ListAudit(ctx, action, limit)
}

// Entry aliases the audit entry type for the Logger contract.
type Entry = audit.Entry

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	snap := snapshot{
		Incidents: make([]incidents.Incident, 0, len(s.incidents)),
		AuditLogs: s.ledger.Snapshot(),
	}
	for _, incident := range s.incidents {
		snap.Incidents = append(snap.Incidents, incident)
	}
	sort.Slice(snap.Incidents, func(i, j int) bool {
		return snap.Incidents[i].CreatedAt.Before(snap.Incidents[j].CreatedAt)
	})

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("incident store: encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("incident store: create dir: %w", err)
		}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("incident store: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("incident store: replace snapshot: %w", err)
	}
	return nil
}

func cloneIncident(incident incidents.Incident) incidents.Incident {
	copied := incident
	copied.Media = append([]string(nil), incident.Media...)
	copied.History = append([]incidents.HistoryEntry(nil), incident.History...)
	return copied
}
