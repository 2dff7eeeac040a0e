package team

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is a thread-safe in-memory store of teams and teammates.
type Registry struct {
	mu        sync.RWMutex
	teams     map[string]*Team
	teammates map[string]*Teammate
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		teams:     make(map[string]*Team),
		teammates: make(map[string]*Teammate),
	}
}

// CreateTeam registers a team, assigning an ID and timestamps.
func (r *Registry) CreateTeam(t *Team) (string, error) {
	if t.Name == "" {
		return "", fmt.Errorf("team name required")
	}
	if t.Strategy == "" {
		t.Strategy = StrategyRoundRobin
	}
	if !t.Strategy.Valid() {
		return "", fmt.Errorf("unknown allocation strategy %q", t.Strategy)
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	t.ID = uuid.NewString()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.teams[t.ID] = &cp
	return t.ID, nil
}

// GetTeam returns a copy of the team with the given id.
func (r *Registry) GetTeam(id string) (*Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %s not found", id)
	}
	cp := *t
	return &cp, nil
}

// ListTeams returns all teams sorted by name.
func (r *Registry) ListTeams() ([]*Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Team, 0, len(r.teams))
	for _, t := range r.teams {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AddCost adds spent USD to a team's aggregate cost.
func (r *Registry) AddCost(teamID string, usd float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return fmt.Errorf("team %s not found", teamID)
	}
	t.CostUSD += usd
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// AddTeammate registers a teammate on a team, enforcing MaxTeammates.
func (r *Registry) AddTeammate(m *Teammate) (string, error) {
	if m.Name == "" {
		return "", fmt.Errorf("teammate name required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.teams[m.TeamID]
	if !ok {
		return "", fmt.Errorf("team %s not found", m.TeamID)
	}
	if t.MaxTeammates > 0 {
		count := 0
		for _, existing := range r.teammates {
			if existing.TeamID == m.TeamID {
				count++
			}
		}
		if count >= t.MaxTeammates {
			return "", fmt.Errorf("team %s is full (%d teammates)", t.Name, t.MaxTeammates)
		}
	}
	if m.Status == "" {
		m.Status = "idle"
	}
	m.ID = uuid.NewString()
	cp := *m
	r.teammates[m.ID] = &cp
	return m.ID, nil
}

// Teammates returns a team's members sorted by name.
func (r *Registry) Teammates(teamID string) ([]*Teammate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Teammate
	for _, m := range r.teammates {
		if m.TeamID == teamID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RemoveTeammate deletes a teammate by id.
func (r *Registry) RemoveTeammate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teammates[id]; !ok {
		return fmt.Errorf("teammate %s not found", id)
	}
	delete(r.teammates, id)
	return nil
}
