package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	alerts "cityreport/internal/alerts/domain"
	"cityreport/internal/alerts/infrastructure/memory"
	"cityreport/internal/audit"
	"cityreport/internal/auth"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type testEnv struct {
	service *Service
	repo    *memory.Repository
	ledger  *audit.Ledger
	clock   *fixedClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := memory.NewRepository()
	ledger := audit.NewLedger(64)
	clock := &fixedClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	service, err := NewService(repo, ledger, WithClock(clock))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &testEnv{service: service, repo: repo, ledger: ledger, clock: clock}
}

func (e *testEnv) createAlert(t *testing.T, input alerts.CreateInput) *alerts.Alert {
	t.Helper()
	if input.Title == "" {
		input.Title = "road closure"
	}
	if input.Content == "" {
		input.Content = "main street closed"
	}
	if input.Type == "" {
		input.Type = alerts.TypeWarning
	}
	if input.StartTime.IsZero() {
		input.StartTime = e.clock.now.Add(-time.Hour)
	}
	if input.EndTime.IsZero() {
		input.EndTime = e.clock.now.Add(time.Hour)
	}
	alert, err := e.service.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create alert: %v", err)
	}
	return alert
}

func TestCreateValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	start := env.clock.now
	end := start.Add(time.Hour)

	cases := []struct {
		name  string
		input alerts.CreateInput
		want  error
	}{
		{"missing title", alerts.CreateInput{Content: "c", Type: alerts.TypeNews, StartTime: start, EndTime: end}, alerts.ErrValidation},
		{"missing content", alerts.CreateInput{Title: "t", Type: alerts.TypeNews, StartTime: start, EndTime: end}, alerts.ErrValidation},
		{"unknown type", alerts.CreateInput{Title: "t", Content: "c", Type: "weather", StartTime: start, EndTime: end}, alerts.ErrValidation},
		{"missing window", alerts.CreateInput{Title: "t", Content: "c", Type: alerts.TypeNews}, alerts.ErrValidation},
		{"inverted window", alerts.CreateInput{Title: "t", Content: "c", Type: alerts.TypeNews, StartTime: end, EndTime: start}, alerts.ErrInvalidWindow},
		{"empty window", alerts.CreateInput{Title: "t", Content: "c", Type: alerts.TypeNews, StartTime: start, EndTime: start}, alerts.ErrInvalidWindow},
	}
	for _, tc := range cases {
		if _, err := env.service.Create(context.Background(), tc.input); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestCreateDefaultsToActive(t *testing.T) {
	env := newTestEnv(t)

	alert := env.createAlert(t, alerts.CreateInput{})
	if !alert.IsActive {
		t.Fatal("alert not active by default")
	}
	if alert.ID == "" {
		t.Fatal("alert id not assigned")
	}

	inactive := false
	explicit := env.createAlert(t, alerts.CreateInput{IsActive: &inactive})
	if explicit.IsActive {
		t.Fatal("explicit is_active=false ignored")
	}
}

func TestUpdateRevalidatesMergedWindow(t *testing.T) {
	env := newTestEnv(t)
	alert := env.createAlert(t, alerts.CreateInput{})

	// Moving only the end before the stored start must fail.
	badEnd := alert.StartTime.Add(-time.Minute)
	if _, err := env.service.Update(context.Background(), alert.ID, alerts.Patch{EndTime: &badEnd}); !errors.Is(err, alerts.ErrInvalidWindow) {
		t.Fatalf("end before start: err = %v, want invalid window", err)
	}

	// Moving only the start after the stored end must fail too.
	badStart := alert.EndTime.Add(time.Minute)
	if _, err := env.service.Update(context.Background(), alert.ID, alerts.Patch{StartTime: &badStart}); !errors.Is(err, alerts.ErrInvalidWindow) {
		t.Fatalf("start after end: err = %v, want invalid window", err)
	}

	// A consistent pair is accepted even when each endpoint alone would clash.
	newStart := alert.EndTime.Add(time.Hour)
	newEnd := newStart.Add(time.Hour)
	updated, err := env.service.Update(context.Background(), alert.ID, alerts.Patch{StartTime: &newStart, EndTime: &newEnd})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.StartTime.Equal(newStart) || !updated.EndTime.Equal(newEnd) {
		t.Fatalf("window = [%v, %v]", updated.StartTime, updated.EndTime)
	}
}

func TestUpdateLeavesOmittedFieldsUntouched(t *testing.T) {
	env := newTestEnv(t)
	alert := env.createAlert(t, alerts.CreateInput{Priority: 3, ArticleURL: "https://example.com/a"})

	title := "updated title"
	updated, err := env.service.Update(context.Background(), alert.ID, alerts.Patch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("title = %q", updated.Title)
	}
	if updated.Content != alert.Content || updated.Priority != 3 || updated.ArticleURL != alert.ArticleURL {
		t.Fatalf("omitted fields changed: %+v", updated)
	}
}

func TestToggleStatus(t *testing.T) {
	env := newTestEnv(t)
	alert := env.createAlert(t, alerts.CreateInput{})

	toggled, err := env.service.ToggleStatus(context.Background(), alert.ID, false)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.IsActive {
		t.Fatal("still active after deactivation")
	}

	active, err := env.service.ListActive(context.Background(), 0)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("deactivated alert still listed: %+v", active)
	}
}

func TestSoftDeleteRestoreCycle(t *testing.T) {
	env := newTestEnv(t)
	alert := env.createAlert(t, alerts.CreateInput{})

	if err := env.service.SoftDelete(context.Background(), alert.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	// Trashed records leave normal listings but keep a Get.
	list, err := env.service.List(context.Background(), alerts.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("trashed alert still listed: %+v", list)
	}
	trashed, err := env.service.Get(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("get after soft delete: %v", err)
	}
	if trashed.DeletedAt == nil {
		t.Fatal("deleted_at not set")
	}
	if trashed.IsActive {
		t.Fatal("trashed alert still administratively active")
	}
	trash, err := env.service.ListTrash(context.Background())
	if err != nil {
		t.Fatalf("list trash: %v", err)
	}
	if len(trash) != 1 || trash[0].ID != alert.ID {
		t.Fatalf("trash = %+v", trash)
	}

	// Deleting again fails.
	if err := env.service.SoftDelete(context.Background(), alert.ID); !errors.Is(err, alerts.ErrAlreadyDeleted) {
		t.Fatalf("double soft delete: err = %v, want already deleted", err)
	}

	restored, err := env.service.Restore(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.DeletedAt != nil {
		t.Fatal("deleted_at survived restore")
	}
	if restored.IsActive {
		t.Fatal("restore must not re-activate the alert")
	}

	// Restoring a non-trashed alert is indistinguishable from a miss.
	if _, err := env.service.Restore(context.Background(), alert.ID); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("restore non-trashed: err = %v, want not found", err)
	}
}

func TestPermanentDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := auth.WithIdentity(context.Background(), "admin-1", auth.RoleAdmin)
	alert := env.createAlert(t, alerts.CreateInput{Title: "old festival banner"})

	if err := env.service.PermanentDelete(ctx, alert.ID); err != nil {
		t.Fatalf("permanent delete: %v", err)
	}
	if _, err := env.service.Get(ctx, alert.ID); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("get after delete: err = %v, want not found", err)
	}
	if err := env.service.PermanentDelete(ctx, alert.ID); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("repeat delete: err = %v, want not found", err)
	}

	// The audit entry keeps the pre-image details.
	entries, err := env.ledger.List(ctx, ActionPermanentDeleteAlert, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	var details map[string]any
	if err := json.Unmarshal(entries[0].Details, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details["title"] != "old festival banner" || details["permanently_deleted"] != true {
		t.Fatalf("details = %v", details)
	}
	if entries[0].UserID != "admin-1" {
		t.Fatalf("actor = %q", entries[0].UserID)
	}
}

func TestListActiveWindowBoundaries(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.now

	inWindow := env.createAlert(t, alerts.CreateInput{Title: "in window"})
	atStart := env.createAlert(t, alerts.CreateInput{Title: "starts now", StartTime: now, EndTime: now.Add(time.Hour)})
	atEnd := env.createAlert(t, alerts.CreateInput{Title: "ends now", StartTime: now.Add(-time.Hour), EndTime: now})
	env.createAlert(t, alerts.CreateInput{Title: "expired", StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour)})
	env.createAlert(t, alerts.CreateInput{Title: "upcoming", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)})
	inactive := false
	env.createAlert(t, alerts.CreateInput{Title: "switched off", IsActive: &inactive})

	active, err := env.service.ListActive(context.Background(), 0)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("active = %d, want 3 (%+v)", len(active), active)
	}
	seen := map[string]bool{}
	for _, alert := range active {
		seen[alert.ID] = true
	}
	for _, want := range []*alerts.Alert{inWindow, atStart, atEnd} {
		if !seen[want.ID] {
			t.Fatalf("alert %q missing from active list", want.Title)
		}
	}
}

func TestListActiveOrdersByPriorityAndTruncates(t *testing.T) {
	env := newTestEnv(t)

	env.createAlert(t, alerts.CreateInput{Title: "low", Priority: 5})
	env.createAlert(t, alerts.CreateInput{Title: "high", Priority: 1})
	env.createAlert(t, alerts.CreateInput{Title: "mid", Priority: 3})

	active, err := env.service.ListActive(context.Background(), 2)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("limit ignored, got %d", len(active))
	}
	if active[0].Title != "high" || active[1].Title != "mid" {
		t.Fatalf("order = %q, %q", active[0].Title, active[1].Title)
	}
}

func TestStatisticsTotalIncludesTrashed(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.now

	env.createAlert(t, alerts.CreateInput{Title: "live"})
	env.createAlert(t, alerts.CreateInput{Title: "expired", StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour)})
	env.createAlert(t, alerts.CreateInput{Title: "upcoming", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)})
	doomed := env.createAlert(t, alerts.CreateInput{Title: "doomed"})
	if err := env.service.SoftDelete(context.Background(), doomed.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	stats, err := env.service.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 4 {
		t.Fatalf("total = %d, want 4 (trashed included)", stats.Total)
	}
	if stats.Active != 1 {
		t.Fatalf("active = %d, want 1", stats.Active)
	}
	if stats.Expired != 1 || stats.Upcoming != 1 {
		t.Fatalf("expired = %d, upcoming = %d", stats.Expired, stats.Upcoming)
	}
}

func TestLifecycleActionsAreAudited(t *testing.T) {
	env := newTestEnv(t)
	ctx := auth.WithIdentity(context.Background(), "operator-2", auth.RoleOperator)

	alert, err := env.service.Create(ctx, alerts.CreateInput{
		Title:     "storm warning",
		Content:   "stay inside",
		Type:      alerts.TypeUrgent,
		StartTime: env.clock.now,
		EndTime:   env.clock.now.Add(6 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	title := "storm warning (updated)"
	if _, err := env.service.Update(ctx, alert.ID, alerts.Patch{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := env.service.ToggleStatus(ctx, alert.ID, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := env.service.SoftDelete(ctx, alert.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := env.service.Restore(ctx, alert.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}

	entries, err := env.ledger.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	wantActions := []string{
		ActionRestoreAlert,
		ActionSoftDeleteAlert,
		ActionDeactivateAlert,
		ActionUpdateAlert,
		ActionCreateAlert,
	}
	if len(entries) != len(wantActions) {
		t.Fatalf("entries = %d, want %d", len(entries), len(wantActions))
	}
	for i, want := range wantActions {
		if entries[i].Action != want {
			t.Fatalf("entries[%d].Action = %q, want %q", i, entries[i].Action, want)
		}
		if entries[i].UserID != "operator-2" {
			t.Fatalf("actor = %q", entries[i].UserID)
		}
	}

	// The update entry carries the patch it applied.
	updates, err := env.ledger.List(ctx, ActionUpdateAlert, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("update entries = %d, want 1", len(updates))
	}
	var patch alerts.Patch
	if err := json.Unmarshal(updates[0].Details, &patch); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if patch.Title == nil || *patch.Title != title {
		t.Fatalf("details = %s", updates[0].Details)
	}
	if patch.Content != nil {
		t.Fatalf("untouched field present in details: %s", updates[0].Details)
	}
}
