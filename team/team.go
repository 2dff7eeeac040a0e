// Package team defines teams of AI teammates and their registry.
// Allocation strategies are stored and exposed for the external
// scheduler; this package never executes them.
package team

import "time"

// Strategy is a team's task allocation policy, consumed by an external
// scheduler.
type Strategy string

const (
	StrategyRoundRobin  Strategy = "round_robin"
	StrategyLoadBalance Strategy = "load_balance"
	StrategySkillBased  Strategy = "skill_based"
)

// Valid reports whether s is a known allocation strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRoundRobin, StrategyLoadBalance, StrategySkillBased:
		return true
	}
	return false
}

// Status represents a team's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// Team groups teammates working a shared task list.
type Team struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MaxTeammates int       `json:"max_teammates"`
	Strategy     Strategy  `json:"strategy"`
	Status       Status    `json:"status"`
	CostUSD      float64   `json:"cost_usd"` // aggregate across the team's tasks
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists teams and their members. Registry is the in-memory
// implementation; SQLiteStore is the durable one.
type Store interface {
	// CreateTeam registers a team and returns its assigned ID.
	CreateTeam(t *Team) (string, error)

	// GetTeam retrieves a team by ID.
	GetTeam(id string) (*Team, error)

	// ListTeams returns all teams sorted by name.
	ListTeams() ([]*Team, error)

	// AddCost adds spent USD to a team's aggregate cost.
	AddCost(teamID string, usd float64) error

	// AddTeammate registers a teammate on a team, enforcing MaxTeammates.
	AddTeammate(m *Teammate) (string, error)

	// Teammates returns a team's members sorted by name.
	Teammates(teamID string) ([]*Teammate, error)

	// RemoveTeammate deletes a teammate by ID.
	RemoveTeammate(id string) error
}

// Teammate is a named persona bound to one provider and model.
type Teammate struct {
	ID       string   `json:"id"`
	TeamID   string   `json:"team_id"`
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Provider string   `json:"provider"`
	Model    string   `json:"model,omitempty"`
	Status   string   `json:"status"`
	Skills   []string `json:"skills,omitempty"`
}
