package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/crewkit/crewkit/comms"
	"github.com/crewkit/crewkit/config"
	"github.com/crewkit/crewkit/task"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(*cfg, "test", logger)

	store, err := task.NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	s.SetTaskStore(store)
	s.SetBus(comms.NewInMemoryBus())
	return s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestTaskCRUD(t *testing.T) {
	s := newTestServer(t)

	rr := doJSON(t, s.Handler(), "POST", "/api/tasks", task.Task{Subject: "build api"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rr.Code, rr.Body)
	}
	created := decode[task.Task](t, rr)
	if created.ID == "" || created.Status != task.StatusPending {
		t.Fatalf("created = %+v, want id and pending status", created)
	}

	rr = doJSON(t, s.Handler(), "GET", "/api/tasks/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: status %d", rr.Code)
	}

	rr = doJSON(t, s.Handler(), "PATCH", "/api/tasks/"+created.ID, map[string]string{"description": "with tests"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: status %d", rr.Code)
	}
	updated := decode[task.Task](t, rr)
	if updated.Description != "with tests" || updated.Subject != "build api" {
		t.Errorf("update = %+v, want merged fields", updated)
	}

	rr = doJSON(t, s.Handler(), "DELETE", "/api/tasks/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rr.Code)
	}
	rr = doJSON(t, s.Handler(), "GET", "/api/tasks/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d, want 404", rr.Code)
	}
}

func TestCreateTask_RequiresSubject(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.Handler(), "POST", "/api/tasks", task.Task{Description: "no subject"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
}

func TestRunTask_GatedOnReadiness(t *testing.T) {
	s := newTestServer(t)

	blocker := decode[task.Task](t, doJSON(t, s.Handler(), "POST", "/api/tasks", task.Task{Subject: "design schema"}))
	blocked := decode[task.Task](t, doJSON(t, s.Handler(), "POST", "/api/tasks", task.Task{
		Subject:   "implement backend api",
		BlockedBy: []string{blocker.ID},
	}))

	rr := doJSON(t, s.Handler(), "POST", "/api/tasks/"+blocked.ID+"/run", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("run blocked task: status %d, want 409", rr.Code)
	}

	rr = doJSON(t, s.Handler(), "PATCH", "/api/tasks/"+blocker.ID, map[string]string{"status": "completed"})
	if rr.Code != http.StatusOK {
		t.Fatalf("complete blocker: status %d", rr.Code)
	}

	rr = doJSON(t, s.Handler(), "POST", "/api/tasks/"+blocked.ID+"/run", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("run unblocked task: status %d, body %s", rr.Code, rr.Body)
	}
	var resp struct {
		Task      task.Task      `json:"task"`
		Selection map[string]any `json:"selection"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Task.Status != task.StatusInProgress {
		t.Errorf("status = %q, want in_progress", resp.Task.Status)
	}
	if resp.Task.Provider != "claude" {
		t.Errorf("provider = %q, want claude for backend keyword", resp.Task.Provider)
	}
	if resp.Task.StartedAt == nil {
		t.Error("StartedAt not set")
	}
}

func TestBoard(t *testing.T) {
	s := newTestServer(t)

	a := decode[task.Task](t, doJSON(t, s.Handler(), "POST", "/api/tasks", task.Task{Subject: "a"}))
	doJSON(t, s.Handler(), "POST", "/api/tasks", task.Task{Subject: "b", BlockedBy: []string{a.ID}})

	rr := doJSON(t, s.Handler(), "GET", "/api/board", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("board: status %d", rr.Code)
	}
	board := decode[[]task.Readiness](t, rr)
	if len(board) != 2 {
		t.Fatalf("board has %d entries, want 2", len(board))
	}
	ready := map[string]bool{}
	for _, e := range board {
		ready[e.Task.Subject] = e.Ready
	}
	if !ready["a"] || ready["b"] {
		t.Errorf("readiness = %v, want a ready and b blocked", ready)
	}
}

func TestRoutePreview(t *testing.T) {
	s := newTestServer(t)

	rr := doJSON(t, s.Handler(), "POST", "/api/route", map[string]any{
		"task": task.Task{Subject: "review the auth flow"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("route: status %d", rr.Code)
	}
	resp := decode[map[string]any](t, rr)
	sel := resp["selection"].(map[string]any)
	if sel["provider"] != "claude" {
		t.Errorf("provider = %v, want claude for review keyword", sel["provider"])
	}

	rr = doJSON(t, s.Handler(), "POST", "/api/route", map[string]any{
		"task":    task.Task{Subject: "anything"},
		"gateway": true,
	})
	resp = decode[map[string]any](t, rr)
	sel = resp["selection"].(map[string]any)
	if sel["provider"] != "gateway" {
		t.Errorf("provider = %v, want gateway", sel["provider"])
	}
}

func TestFailoverPreview(t *testing.T) {
	s := newTestServer(t)

	rr := doJSON(t, s.Handler(), "POST", "/api/failover", map[string]any{
		"task":   task.Task{Subject: "anything"},
		"failed": "claude",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("failover: status %d, body %s", rr.Code, rr.Body)
	}
	resp := decode[map[string]any](t, rr)
	static := resp["static"].(map[string]any)
	if static["provider"] != "gemini" {
		t.Errorf("static = %v, want gemini (first configured candidate)", static)
	}
	if _, ok := resp["live"]; ok {
		t.Error("live resolution present without a health report")
	}

	rr = doJSON(t, s.Handler(), "POST", "/api/failover", map[string]any{
		"task":      task.Task{Subject: "anything"},
		"failed":    "claude",
		"exhausted": []string{"gemini"},
		"health": map[string]any{
			"gemini": map[string]any{"enabled": true, "status": "healthy"},
			"qwen":   map[string]any{"enabled": true, "status": "healthy"},
			"codex":  map[string]any{"enabled": true, "status": "offline"},
		},
	})
	resp = decode[map[string]any](t, rr)
	if resp["live"] != "qwen" {
		t.Errorf("live = %v, want qwen (gemini exhausted, codex offline)", resp["live"])
	}
}

func TestEstimate(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		doJSON(t, s.Handler(), "POST", "/api/tasks", task.Task{Subject: fmt.Sprintf("task %d", i)})
	}

	rr := doJSON(t, s.Handler(), "GET", "/api/estimate?avg_tokens=1000", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("estimate: status %d", rr.Code)
	}
	resp := decode[map[string]any](t, rr)
	if resp["tasks"].(float64) != 3 {
		t.Errorf("tasks = %v, want 3", resp["tasks"])
	}
	// three default-routed tasks at 1000 tokens each
	want := 3 * 0.0003
	if got := resp["estimated_cost_usd"].(float64); got < want*0.999 || got > want*1.001 {
		t.Errorf("estimated_cost_usd = %v, want %v", got, want)
	}
}

func TestTeams(t *testing.T) {
	s := newTestServer(t)

	rr := doJSON(t, s.Handler(), "POST", "/api/teams", map[string]any{"name": "platform", "max_teammates": 2})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create team: status %d, body %s", rr.Code, rr.Body)
	}
	created := decode[map[string]any](t, rr)
	id := created["id"].(string)

	rr = doJSON(t, s.Handler(), "POST", "/api/teams/"+id+"/teammates", map[string]any{"name": "ana", "provider": "claude"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add teammate: status %d, body %s", rr.Code, rr.Body)
	}

	rr = doJSON(t, s.Handler(), "GET", "/api/teams/"+id+"/teammates", nil)
	mates := decode[[]map[string]any](t, rr)
	if len(mates) != 1 || mates[0]["name"] != "ana" {
		t.Errorf("teammates = %v, want [ana]", mates)
	}
}

func TestAuth_RequiredWhenPasswordSet(t *testing.T) {
	cfg := config.DefaultConfig()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg.Auth.AdminPass = string(hash)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(*cfg, "test", logger)

	store, err := task.NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	s.SetTaskStore(store)

	rr := doJSON(t, s.Handler(), "GET", "/api/tasks", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: status %d, want 401", rr.Code)
	}

	rr = doJSON(t, s.Handler(), "POST", "/api/login", map[string]string{"username": "admin", "password": "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d, want 401", rr.Code)
	}

	rr = doJSON(t, s.Handler(), "POST", "/api/login", map[string]string{"username": "admin", "password": "s3cret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rr.Code, rr.Body)
	}
	token := decode[map[string]string](t, rr)["token"]
	if token == "" {
		t.Fatal("empty token")
	}

	req := httptest.NewRequest("GET", "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated list: status %d", rec.Code)
	}

	// status stays open
	rr = doJSON(t, s.Handler(), "GET", "/api/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: status %d, want open endpoint", rr.Code)
	}
}

func TestRunTask_PublishesNotice(t *testing.T) {
	s := newTestServer(t)
	bus := comms.NewInMemoryBus()
	s.SetBus(bus)

	var got []comms.Notice
	bus.Subscribe("", func(_ context.Context, n comms.Notice) {
		got = append(got, n)
	})

	created := decode[task.Task](t, doJSON(t, s.Handler(), "POST", "/api/tasks", task.Task{Subject: "ship it"}))
	doJSON(t, s.Handler(), "POST", "/api/tasks/"+created.ID+"/run", nil)

	var started bool
	for _, n := range got {
		if n.Kind == comms.KindTaskUpdate && n.TaskID == created.ID && n.Provider != "" {
			started = true
		}
	}
	if !started {
		t.Errorf("notices = %+v, want a task_update with provider for run", got)
	}
}
