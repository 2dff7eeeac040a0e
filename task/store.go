package task

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	team_id      TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL,
	description  TEXT NOT NULL,
	status       TEXT NOT NULL,
	priority     INTEGER NOT NULL DEFAULT 5,
	blocked_by   TEXT NOT NULL DEFAULT '[]',
	blocks       TEXT NOT NULL DEFAULT '[]',
	provider     TEXT NOT NULL DEFAULT '',
	model        TEXT NOT NULL DEFAULT '',
	cost_usd     REAL NOT NULL DEFAULT 0,
	assigned_to  TEXT NOT NULL DEFAULT '',
	skills       TEXT NOT NULL DEFAULT '[]',
	metadata     TEXT NOT NULL DEFAULT '{}',
	result       TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	started_at   DATETIME,
	completed_at DATETIME
);
`

// SQLiteStore persists tasks in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the tasks table exists. The caller is responsible for calling Close.
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

// Create persists a new task and sets its ID, CreatedAt, and UpdatedAt.
func (s *SQLiteStore) Create(t *Task) (string, error) {
	t.ID = uuid.NewString()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = StatusPending
	}
	t.Priority = t.Priority.Clamp()

	blockedBy, _ := json.Marshal(t.BlockedBy)
	blocks, _ := json.Marshal(t.Blocks)
	skills, _ := json.Marshal(t.Skills)
	metadata, _ := json.Marshal(t.Metadata)

	_, err := s.db.Exec(`
		INSERT INTO tasks
			(id, team_id, subject, description, status, priority,
			 blocked_by, blocks, provider, model, cost_usd, assigned_to,
			 skills, metadata, result, error, created_at, updated_at, started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.TeamID, t.Subject, t.Description, string(t.Status), int(t.Priority),
		string(blockedBy), string(blocks), t.Provider, t.Model, t.CostUSD, t.AssignedTo,
		string(skills), string(metadata), t.Result, t.Error,
		t.CreatedAt, t.UpdatedAt,
		nullTime(t.StartedAt), nullTime(t.CompletedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(id string) (*Task, error) {
	row := s.db.QueryRow(`SELECT * FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return t, err
}

// Update saves changes to an existing task, updating UpdatedAt automatically.
func (s *SQLiteStore) Update(t *Task) error {
	t.UpdatedAt = time.Now().UTC()
	blockedBy, _ := json.Marshal(t.BlockedBy)
	blocks, _ := json.Marshal(t.Blocks)
	skills, _ := json.Marshal(t.Skills)
	metadata, _ := json.Marshal(t.Metadata)

	res, err := s.db.Exec(`
		UPDATE tasks SET
			team_id=?, subject=?, description=?, status=?, priority=?,
			blocked_by=?, blocks=?, provider=?, model=?, cost_usd=?, assigned_to=?,
			skills=?, metadata=?, result=?, error=?,
			updated_at=?, started_at=?, completed_at=?
		WHERE id=?`,
		t.TeamID, t.Subject, t.Description, string(t.Status), int(t.Priority.Clamp()),
		string(blockedBy), string(blocks), t.Provider, t.Model, t.CostUSD, t.AssignedTo,
		string(skills), string(metadata), t.Result, t.Error,
		t.UpdatedAt, nullTime(t.StartedAt), nullTime(t.CompletedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s not found", t.ID)
	}
	return nil
}

// List returns tasks matching the filter, most urgent first.
func (s *SQLiteStore) List(filter Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT * FROM tasks WHERE 1=1")
	args := []any{}

	if filter.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*filter.Status))
	}
	if filter.AssignedTo != "" {
		q.WriteString(" AND assigned_to=?")
		args = append(args, filter.AssignedTo)
	}
	if filter.TeamID != "" {
		q.WriteString(" AND team_id=?")
		args = append(args, filter.TeamID)
	}
	q.WriteString(" ORDER BY priority DESC, created_at ASC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	rows, err := s.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Delete removes a task by ID.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status, blockedByJSON, blocksJSON, skillsJSON, metadataJSON string
	var priority int
	var startedAt, completedAt sql.NullTime

	err := s.Scan(
		&t.ID, &t.TeamID, &t.Subject, &t.Description, &status, &priority,
		&blockedByJSON, &blocksJSON, &t.Provider, &t.Model, &t.CostUSD, &t.AssignedTo,
		&skillsJSON, &metadataJSON, &t.Result, &t.Error,
		&t.CreatedAt, &t.UpdatedAt,
		&startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.Priority = Priority(priority)

	_ = json.Unmarshal([]byte(blockedByJSON), &t.BlockedBy)
	_ = json.Unmarshal([]byte(blocksJSON), &t.Blocks)
	_ = json.Unmarshal([]byte(skillsJSON), &t.Skills)
	_ = json.Unmarshal([]byte(metadataJSON), &t.Metadata)

	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
