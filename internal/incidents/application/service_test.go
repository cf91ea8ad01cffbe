package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"cityreport/internal/audit"
	"cityreport/internal/auth"
	incidentfile "cityreport/internal/incidents/infrastructure/file"

	incidents "cityreport/internal/incidents/domain"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type failingAuditLog struct{}

func (failingAuditLog) Log(ctx context.Context, entry audit.Entry) error {
	return errors.New("sink unavailable")
}

func newTestService(t *testing.T, clock *fixedClock) *Service {
	t.Helper()
	store, err := incidentfile.NewStore("", 32)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	service, err := NewService(store, store, store.Audits(), WithClock(clock))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return service
}

func TestCreateAppliesDefaultsAndSeedsHistory(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, clock)

	incident, err := service.Create(context.Background(), incidents.CreateInput{
		Type:     "pothole",
		Location: "Nguyen Hue 12",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if incident.Status != incidents.StatusNew {
		t.Fatalf("status = %q, want %q", incident.Status, incidents.StatusNew)
	}
	if incident.Priority != incidents.PriorityMedium {
		t.Fatalf("priority = %q, want %q", incident.Priority, incidents.PriorityMedium)
	}
	if incident.Source != incidents.SourceWeb {
		t.Fatalf("source = %q, want %q", incident.Source, incidents.SourceWeb)
	}
	if len(incident.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(incident.History))
	}
	first := incident.History[0]
	if first.Status != incidents.StatusNew || first.Note != "created" {
		t.Fatalf("unexpected first history entry: %+v", first)
	}
	if !first.Time.Equal(clock.now) {
		t.Fatalf("history time = %v, want %v", first.Time, clock.now)
	}
}

func TestCreateRequiresTypeAndLocation(t *testing.T) {
	service := newTestService(t, &fixedClock{now: time.Now().UTC()})

	if _, err := service.Create(context.Background(), incidents.CreateInput{Location: "somewhere"}); !errors.Is(err, incidents.ErrValidation) {
		t.Fatalf("missing type: err = %v, want validation error", err)
	}
	if _, err := service.Create(context.Background(), incidents.CreateInput{Type: "flooding"}); !errors.Is(err, incidents.ErrValidation) {
		t.Fatalf("missing location: err = %v, want validation error", err)
	}
}

func TestUpdateStatusAppendsMatchingHistory(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, clock)

	created, err := service.Create(context.Background(), incidents.CreateInput{Type: "flooding", Location: "D1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.now = clock.now.Add(time.Hour)
	updated, err := service.UpdateStatus(context.Background(), created.ID, incidents.StatusAssigned, "crew dispatched")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != incidents.StatusAssigned {
		t.Fatalf("status = %q, want %q", updated.Status, incidents.StatusAssigned)
	}
	if len(updated.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(updated.History))
	}
	last := updated.History[len(updated.History)-1]
	if last.Status != updated.Status {
		t.Fatalf("status %q does not match last history entry %q", updated.Status, last.Status)
	}
	if last.Note != "crew dispatched" {
		t.Fatalf("note = %q", last.Note)
	}
	if !updated.UpdatedAt.Equal(clock.now) {
		t.Fatalf("updatedAt = %v, want %v", updated.UpdatedAt, clock.now)
	}

	// Repeating the current status is allowed and still appends.
	again, err := service.UpdateStatus(context.Background(), created.ID, incidents.StatusAssigned, "")
	if err != nil {
		t.Fatalf("repeat status: %v", err)
	}
	if len(again.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(again.History))
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	service := newTestService(t, &fixedClock{now: time.Now().UTC()})

	if _, err := service.UpdateStatus(context.Background(), "inc-missing", incidents.StatusResolved, ""); !errors.Is(err, incidents.ErrNotFound) {
		t.Fatalf("unknown id: err = %v, want not found", err)
	}
	if _, err := service.UpdateStatus(context.Background(), "inc-missing", "", ""); !errors.Is(err, incidents.ErrValidation) {
		t.Fatalf("empty status: err = %v, want validation error", err)
	}
}

func TestStatisticsCountsByDimension(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, clock)

	inputs := []incidents.CreateInput{
		{Type: "pothole", Location: "a", Priority: incidents.PriorityHigh},
		{Type: "pothole", Location: "b", Source: incidents.SourceMiniApp},
		{Type: "lighting", Location: "c", Status: incidents.StatusResolved},
	}
	for _, input := range inputs {
		if _, err := service.Create(context.Background(), input); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	stats, err := service.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalIncidents != 3 {
		t.Fatalf("total = %d, want 3", stats.TotalIncidents)
	}
	if stats.ByStatus[incidents.StatusNew] != 2 || stats.ByStatus[incidents.StatusResolved] != 1 {
		t.Fatalf("byStatus = %v", stats.ByStatus)
	}
	if stats.BySource[incidents.SourceWeb] != 2 || stats.BySource[incidents.SourceMiniApp] != 1 {
		t.Fatalf("bySource = %v", stats.BySource)
	}
	if stats.ByPriority[incidents.PriorityMedium] != 2 || stats.ByPriority[incidents.PriorityHigh] != 1 {
		t.Fatalf("byPriority = %v", stats.ByPriority)
	}
}

func TestMutationsAreAudited(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	service := newTestService(t, clock)
	ctx := auth.WithIdentity(context.Background(), "user-17", auth.RoleOperator)

	created, err := service.Create(ctx, incidents.CreateInput{Type: "noise", Location: "D3"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.UpdateStatus(ctx, created.ID, incidents.StatusProcessing, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}

	entries, err := service.AuditLogs(ctx, "")
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Action != ActionUpdateIncidentStatus || entries[1].Action != ActionCreateIncident {
		t.Fatalf("unexpected order: %s then %s", entries[0].Action, entries[1].Action)
	}
	for _, entry := range entries {
		if entry.UserID != "user-17" {
			t.Fatalf("actor = %q, want user-17", entry.UserID)
		}
		if entry.TargetID != created.ID {
			t.Fatalf("target = %q, want %s", entry.TargetID, created.ID)
		}
	}

	filtered, err := service.AuditLogs(ctx, ActionCreateIncident)
	if err != nil {
		t.Fatalf("filtered audit logs: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Action != ActionCreateIncident {
		t.Fatalf("filtered = %+v", filtered)
	}
}

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	store, err := incidentfile.NewStore("", 8)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	service, err := NewService(store, failingAuditLog{}, store.Audits())
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	created, err := service.Create(context.Background(), incidents.CreateInput{Type: "graffiti", Location: "wall"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, err := service.Get(context.Background(), created.ID); err != nil || got == nil {
		t.Fatalf("get after create: %v", err)
	}
}
