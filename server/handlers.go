package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/crewkit/crewkit/comms"
	"github.com/crewkit/crewkit/failover"
	"github.com/crewkit/crewkit/provider"
	"github.com/crewkit/crewkit/routing"
	"github.com/crewkit/crewkit/task"
	"github.com/crewkit/crewkit/team"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Task handlers ---

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	filter := task.Filter{
		TeamID:     r.URL.Query().Get("team_id"),
		AssignedTo: r.URL.Query().Get("assigned_to"),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := task.Status(v)
		filter.Status = &st
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	tasks, err := s.tasks.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if t.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}
	if t.Priority == 0 {
		t.Priority = task.PriorityDefault
	}
	id, err := s.tasks.Create(&t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.publish(r, comms.Notice{Kind: comms.KindTaskUpdate, TaskID: id, Text: "task created"})
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := json.NewDecoder(r.Body).Decode(t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.tasks.Update(t); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.publish(r, comms.Notice{Kind: comms.KindTaskUpdate, TaskID: t.ID, Text: "task updated"})
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runTask gates the board's "run" action on readiness and records the
// routing decision. Execution itself happens in the host's provider
// adapters, outside this server.
func (s *Server) runTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := s.tasks.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	all, err := s.tasks.List(task.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	readiness := task.ReadinessFor(all, id)
	if !readiness.Ready {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "task is not ready to run",
			"readiness": readiness,
		})
		return
	}

	sel := s.engine.SelectProvider(t)
	now := time.Now().UTC()
	t.Status = task.StatusInProgress
	t.Provider = sel.Provider
	t.Model = sel.Model
	t.StartedAt = &now
	if err := s.tasks.Update(t); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.publish(r, comms.Notice{
		Kind:     comms.KindTaskUpdate,
		TaskID:   t.ID,
		Provider: sel.Provider,
		Text:     "task started on " + provider.DisplayName(sel.Provider),
	})
	writeJSON(w, http.StatusOK, map[string]any{"task": t, "selection": sel})
}

// --- Board, routing, estimate ---

func (s *Server) board(w http.ResponseWriter, r *http.Request) {
	all, err := s.tasks.List(task.Filter{TeamID: r.URL.Query().Get("team_id")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	readiness := task.ComputeReadiness(all)
	if readiness == nil {
		readiness = []task.Readiness{}
	}
	writeJSON(w, http.StatusOK, readiness)
}

func (s *Server) routePreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task    task.Task `json:"task"`
		Gateway bool      `json:"gateway,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var sel routing.Selection
	if req.Gateway {
		sel = s.engine.SelectViaGateway(&req.Task)
	} else {
		sel = s.engine.SelectProvider(&req.Task)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"selection":    sel,
		"display_name": provider.DisplayName(sel.Provider),
	})
}

// failoverPreview answers "this provider failed for this task, who takes
// over": the static table when health is absent, the live resolution when
// the caller supplies a health report.
func (s *Server) failoverPreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task      task.Task                  `json:"task"`
		Failed    string                     `json:"failed"`
		Exhausted []string                   `json:"exhausted,omitempty"`
		Health    map[string]failover.Health `json:"health,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Failed == "" {
		writeError(w, http.StatusBadRequest, "failed provider is required")
		return
	}

	resp := map[string]any{
		"static": s.coord.Failover(&req.Task, req.Failed),
	}
	if len(req.Health) > 0 {
		exhausted := make(map[string]bool, len(req.Exhausted))
		for _, p := range req.Exhausted {
			exhausted[p] = true
		}
		resp["live"] = s.coord.ResolveFallbackProvider(req.Failed, exhausted, req.Health)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request) {
	pending := task.StatusPending
	tasks, err := s.tasks.List(task.Filter{
		Status: &pending,
		TeamID: r.URL.Query().Get("team_id"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	avg := s.cfg.Routing.AvgTokensPerTask
	if v := r.URL.Query().Get("avg_tokens"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			avg = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":              len(tasks),
		"avg_tokens":         avg,
		"estimated_cost_usd": s.engine.EstimateCost(tasks, avg),
	})
}

// --- Team handlers ---

func (s *Server) listTeams(w http.ResponseWriter, _ *http.Request) {
	teams, err := s.teams.ListTeams()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if teams == nil {
		teams = []*team.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	var t team.Team
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := s.teams.CreateTeam(&t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) listTeammates(w http.ResponseWriter, r *http.Request) {
	members, err := s.teams.Teammates(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if members == nil {
		members = []*team.Teammate{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) addTeammate(w http.ResponseWriter, r *http.Request) {
	var m team.Teammate
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	m.TeamID = r.PathValue("id")
	if _, err := s.teams.AddTeammate(&m); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// --- Status ---

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) versionInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) publish(r *http.Request, n comms.Notice) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(r.Context(), n)
}
