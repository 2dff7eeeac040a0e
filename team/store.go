package team

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	max_teammates INTEGER NOT NULL DEFAULT 0,
	strategy      TEXT NOT NULL,
	status        TEXT NOT NULL,
	cost_usd      REAL NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS teammates (
	id       TEXT PRIMARY KEY,
	team_id  TEXT NOT NULL,
	name     TEXT NOT NULL,
	role     TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL DEFAULT '',
	model    TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL,
	skills   TEXT NOT NULL DEFAULT '[]'
);
`

// SQLiteStore persists teams and teammates in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and
// ensures the team tables exist. The caller is responsible for Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateTeam registers a team, assigning an ID and timestamps.
func (s *SQLiteStore) CreateTeam(t *Team) (string, error) {
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

	_, err := s.db.Exec(`
		INSERT INTO teams
			(id, name, max_teammates, strategy, status, cost_usd, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.Name, t.MaxTeammates, string(t.Strategy), string(t.Status),
		t.CostUSD, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert team: %w", err)
	}
	return t.ID, nil
}

// GetTeam retrieves a team by ID.
func (s *SQLiteStore) GetTeam(id string) (*Team, error) {
	row := s.db.QueryRow(`SELECT * FROM teams WHERE id = ?`, id)
	t, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("team %s not found", id)
	}
	return t, err
}

// ListTeams returns all teams sorted by name.
func (s *SQLiteStore) ListTeams() ([]*Team, error) {
	rows, err := s.db.Query(`SELECT * FROM teams ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// AddCost adds spent USD to a team's aggregate cost.
func (s *SQLiteStore) AddCost(teamID string, usd float64) error {
	res, err := s.db.Exec(`
		UPDATE teams SET cost_usd = cost_usd + ?, updated_at = ? WHERE id = ?`,
		usd, time.Now().UTC(), teamID,
	)
	if err != nil {
		return fmt.Errorf("add cost: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("team %s not found", teamID)
	}
	return nil
}

// AddTeammate registers a teammate on a team, enforcing MaxTeammates.
func (s *SQLiteStore) AddTeammate(m *Teammate) (string, error) {
	if m.Name == "" {
		return "", fmt.Errorf("teammate name required")
	}
	t, err := s.GetTeam(m.TeamID)
	if err != nil {
		return "", err
	}
	if t.MaxTeammates > 0 {
		var count int
		if err := s.db.QueryRow(
			`SELECT COUNT(*) FROM teammates WHERE team_id = ?`, m.TeamID,
		).Scan(&count); err != nil {
			return "", fmt.Errorf("count teammates: %w", err)
		}
		if count >= t.MaxTeammates {
			return "", fmt.Errorf("team %s is full (%d teammates)", t.Name, t.MaxTeammates)
		}
	}
	if m.Status == "" {
		m.Status = "idle"
	}
	m.ID = uuid.NewString()
	skills, _ := json.Marshal(m.Skills)

	_, err = s.db.Exec(`
		INSERT INTO teammates (id, team_id, name, role, provider, model, status, skills)
		VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.TeamID, m.Name, m.Role, m.Provider, m.Model, m.Status, string(skills),
	)
	if err != nil {
		return "", fmt.Errorf("insert teammate: %w", err)
	}
	return m.ID, nil
}

// Teammates returns a team's members sorted by name.
func (s *SQLiteStore) Teammates(teamID string) ([]*Teammate, error) {
	rows, err := s.db.Query(
		`SELECT * FROM teammates WHERE team_id = ? ORDER BY name ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list teammates: %w", err)
	}
	defer rows.Close()

	var members []*Teammate
	for rows.Next() {
		var m Teammate
		var skillsJSON string
		if err := rows.Scan(&m.ID, &m.TeamID, &m.Name, &m.Role, &m.Provider,
			&m.Model, &m.Status, &skillsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(skillsJSON), &m.Skills)
		members = append(members, &m)
	}
	return members, rows.Err()
}

// RemoveTeammate deletes a teammate by ID.
func (s *SQLiteStore) RemoveTeammate(id string) error {
	res, err := s.db.Exec(`DELETE FROM teammates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete teammate: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("teammate %s not found", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTeam(s scanner) (*Team, error) {
	var t Team
	var strategy, status string
	err := s.Scan(&t.ID, &t.Name, &t.MaxTeammates, &strategy, &status,
		&t.CostUSD, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Strategy = Strategy(strategy)
	t.Status = Status(status)
	return &t, nil
}
