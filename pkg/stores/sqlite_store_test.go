package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRun(id, name string, started time.Time) *Run {
	return &Run{
		ID:        id,
		Name:      name,
		Scope:     "vsys:vsys1",
		Host:      "fw.example.com",
		Transport: "xmlapi",
		State:     engine.StatePresent,
		Status:    engine.RunStatusRunning,
		StartedAt: started,
	}
}

func strPtr(s string) *string { return &s }

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreLifecycle tests database initialization and closure on disk
func TestStoreLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	// Running migrations twice is a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}

	var mode string
	if err := store.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("failed to read journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected WAL journal mode, got %s", mode)
	}

	var fk int
	if err := store.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("failed to read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign keys on, got %d", fk)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestHealthCheck_Uninitialized(t *testing.T) {
	store, _ := NewSQLiteStore(Config{Path: MemoryPath})
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Error("expected error before Init")
	}
	if err := store.Migrate(context.Background()); err == nil {
		t.Error("expected migrate error before Init")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"runs", "events", "audit"} {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestRunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := newRun("run-1", "blocked-sites", time.Now().UTC())
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Name != "blocked-sites" || got.Status != engine.RunStatusRunning || got.Diff != "{}" {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.CompletedAt != nil {
		t.Error("expected running run to have no completion time")
	}

	run.Operation = engine.OperationCreate
	run.Changed = true
	run.Committed = true
	run.Status = engine.RunStatusSucceeded
	run.Diff = `{"changes":[{"path":"name"}]}`

	audit := []*AuditEntry{
		{Action: "object.create", Actor: "admin", TargetID: strPtr("blocked-sites")},
		{Action: "config.commit", Actor: "admin", TargetID: strPtr("blocked-sites")},
	}
	if err := store.FinishRun(ctx, run, audit); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	got, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if !got.Changed || !got.Committed || got.Operation != engine.OperationCreate {
		t.Errorf("expected finished fields stored, got %+v", got)
	}
	if got.Status != engine.RunStatusSucceeded {
		t.Errorf("expected status succeeded, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("expected completion time to be set")
	}
	if got.Diff != run.Diff {
		t.Errorf("expected diff %s, got %s", run.Diff, got.Diff)
	}

	entries, err := store.ListAuditEntries(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Action != "config.commit" {
		t.Errorf("expected newest entry first, got %s", entries[0].Action)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.GetRun(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestFinishRun_NotFoundRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := newRun("ghost", "x", time.Now())
	run.Status = engine.RunStatusFailed
	err := store.FinishRun(ctx, run, []*AuditEntry{{Action: "object.delete", Actor: "admin"}})
	if err == nil {
		t.Fatal("expected error for missing run")
	}

	entries, err := store.ListAuditEntries(ctx, nil, nil, 0, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected audit insert rolled back, got %d entries", len(entries))
	}
}

func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := []*Run{
		newRun("r1", "alpha", base),
		newRun("r2", "beta", base.Add(time.Minute)),
		newRun("r3", "alpha", base.Add(2*time.Minute)),
	}
	for _, r := range runs {
		if err := store.CreateRun(ctx, r); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}
	runs[2].Status = engine.RunStatusFailed
	runs[2].ErrorCode = strPtr(engine.ErrCodeDeviceCommunication)
	runs[2].Error = strPtr("connection refused")
	if err := store.FinishRun(ctx, runs[2], nil); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	tests := []struct {
		name   string
		filter RunFilter
		want   []string
	}{
		{name: "all newest first", filter: RunFilter{}, want: []string{"r3", "r2", "r1"}},
		{name: "by name", filter: RunFilter{Name: "alpha"}, want: []string{"r3", "r1"}},
		{name: "by status", filter: RunFilter{Status: engine.RunStatusFailed}, want: []string{"r3"}},
		{name: "paged", filter: RunFilter{Limit: 1, Offset: 1}, want: []string{"r2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListRuns(ctx, tt.filter)
			if err != nil {
				t.Fatalf("failed to list runs: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d runs, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("expected run %d to be %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}

	failed, _ := store.GetRun(ctx, "r3")
	if failed.ErrorCode == nil || *failed.ErrorCode != engine.ErrCodeDeviceCommunication {
		t.Errorf("expected error code stored, got %v", failed.ErrorCode)
	}
}

func TestEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, newRun("run-1", "x", time.Now())); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	runID := strPtr("run-1")
	events := []*Event{
		{RunID: runID, Type: engine.EventTypeRunStarted, Message: "started"},
		{RunID: runID, Type: engine.EventTypeWarning, Message: "duplicate member"},
		{RunID: runID, Type: engine.EventTypeRunFailed, Message: "failed"},
		{Type: engine.EventTypeWarning, Message: "unrelated"},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected event ID to be assigned")
		}
	}

	if events[1].Level != EventLevelWarning || events[2].Level != EventLevelError || events[0].Level != EventLevelInfo {
		t.Errorf("expected levels derived from types, got %s %s %s", events[0].Level, events[1].Level, events[2].Level)
	}

	got, err := store.GetEvents(ctx, runID, nil, 0, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(got) != 3 || got[0].Type != engine.EventTypeRunStarted {
		t.Errorf("expected 3 run events in order, got %+v", got)
	}

	level := EventLevelWarning
	got, err = store.GetEvents(ctx, nil, &level, 0, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 warnings, got %d", len(got))
	}
}

func TestDeleteRunsBefore_CascadesEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if err := store.CreateRun(ctx, newRun("old", "x", old)); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := store.CreateRun(ctx, newRun("new", "x", time.Now())); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := store.AppendEvent(ctx, &Event{RunID: strPtr("old"), Type: engine.EventTypeRunStarted, Message: "started"}); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	n, err := store.DeleteRunsBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to prune runs: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned run, got %d", n)
	}

	events, err := store.GetEvents(ctx, strPtr("old"), nil, 0, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected events removed with their run, got %d", len(events))
	}
}

func TestAppendEvent_UnknownRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.AppendEvent(context.Background(), &Event{RunID: strPtr("missing"), Type: engine.EventTypeRunStarted, Message: "x"})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}
