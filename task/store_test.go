package task

import (
	"os"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "crewkit-task-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	task := &Task{
		Subject:     "Fix backend API bug",
		Description: "500s on /users",
		Status:      StatusPending,
		Priority:    8,
		TeamID:      "team-1",
		BlockedBy:   []string{"dep-1"},
		Skills:      []string{"golang", "backend"},
		Metadata:    map[string]string{"origin": "board"},
	}
	id, err := store.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty ID")
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject != task.Subject {
		t.Errorf("Subject = %q, want %q", got.Subject, task.Subject)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, StatusPending)
	}
	if got.Priority != 8 {
		t.Errorf("Priority = %d, want 8", got.Priority)
	}
	if len(got.BlockedBy) != 1 || got.BlockedBy[0] != "dep-1" {
		t.Errorf("BlockedBy = %v, want [dep-1]", got.BlockedBy)
	}
	if len(got.Skills) != 2 || got.Skills[0] != "golang" {
		t.Errorf("Skills = %v, want [golang backend]", got.Skills)
	}
	if got.Metadata["origin"] != "board" {
		t.Errorf("Metadata origin = %q, want board", got.Metadata["origin"])
	}
}

func TestSQLiteStore_CreateClampsPriority(t *testing.T) {
	store := newTestStore(t)

	task := &Task{Subject: "x", Description: "y", Priority: 42}
	id, err := store.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Priority != PriorityMax {
		t.Errorf("Priority = %d, want %d", got.Priority, PriorityMax)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want pending default", got.Status)
	}
}

func TestSQLiteStore_Update(t *testing.T) {
	store := newTestStore(t)

	task := &Task{Subject: "orig", Description: "desc", Status: StatusPending}
	id, err := store.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	task.Subject = "updated"
	task.Status = StatusInProgress
	task.Provider = "gemini"
	task.Model = "gemini-2.5-pro"
	task.CostUSD = 0.42
	if err := store.Update(task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.Subject != "updated" {
		t.Errorf("Subject = %q, want updated", got.Subject)
	}
	if got.Status != StatusInProgress {
		t.Errorf("Status = %q, want in_progress", got.Status)
	}
	if got.Provider != "gemini" || got.Model != "gemini-2.5-pro" {
		t.Errorf("Provider/Model = %q/%q, want gemini/gemini-2.5-pro", got.Provider, got.Model)
	}
	if got.CostUSD != 0.42 {
		t.Errorf("CostUSD = %v, want 0.42", got.CostUSD)
	}
}

func TestSQLiteStore_Update_NotFound(t *testing.T) {
	store := newTestStore(t)
	task := &Task{ID: "nonexistent", Subject: "x", Description: "y", Status: StatusPending}
	if err := store.Update(task); err == nil {
		t.Fatal("Update of missing task should fail")
	}
}

func TestSQLiteStore_ListFilters(t *testing.T) {
	store := newTestStore(t)

	mk := func(subject, teamID string, status Status, prio Priority) {
		t.Helper()
		if _, err := store.Create(&Task{
			Subject: subject, Description: "d", TeamID: teamID, Status: status, Priority: prio,
		}); err != nil {
			t.Fatalf("Create %s: %v", subject, err)
		}
	}
	mk("low", "t1", StatusPending, 2)
	mk("high", "t1", StatusPending, 9)
	mk("done", "t1", StatusCompleted, 5)
	mk("other-team", "t2", StatusPending, 5)

	pending := StatusPending
	got, err := store.List(Filter{Status: &pending, TeamID: "t1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List returned %d tasks, want 2", len(got))
	}
	if got[0].Subject != "high" {
		t.Errorf("first task = %q, want high (priority ordering)", got[0].Subject)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Create(&Task{Subject: "x", Description: "y"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(id); err == nil {
		t.Fatal("Get after delete should fail")
	}
	if err := store.Delete(id); err == nil {
		t.Fatal("second Delete should fail")
	}
}
