package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines task persistence.
type Repository interface {
	Create(ctx context.Context, ownerID string, n NewTask) (*Task, error)
	GetByID(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, scope ListScope) ([]Task, error)
	Update(ctx context.Context, id string, p Patch) (*Task, error)
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed task repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const taskColumns = "id, title, description, completed, owner_id, assignee_id, created_at, updated_at"

// Create inserts a task owned by ownerID. The caller is expected to have
// validated and sanitised n.
func (r *SQLiteRepository) Create(ctx context.Context, ownerID string, n NewTask) (*Task, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	t := &Task{
		ID:          "tsk-" + uuid.NewString()[:8],
		Title:       n.Title,
		Description: n.Description,
		Completed:   n.Completed,
		OwnerID:     ownerID,
		AssigneeID:  n.AssigneeID,
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	t.UpdatedAt = t.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, nullString(t.Description), boolToInt(t.Completed),
		t.OwnerID, t.AssigneeID, now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrAssigneeNotFound
		}
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return t, nil
}

// GetByID retrieves a task by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Task, error) {
	return scanTask(r.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
}

// List returns the tasks inside scope, newest first. A non-admin scope is a
// single query over owner OR assignee, so a task the user both owns and is
// assigned to appears once.
func (r *SQLiteRepository) List(ctx context.Context, scope ListScope) ([]Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var args []any

	switch {
	case scope.All:
	case scope.UserID != "":
		query += " WHERE owner_id = ? OR assignee_id = ?"
		args = append(args, scope.UserID, scope.UserID)
	default:
		return []Task{}, nil
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// Update applies the non-nil fields of p and returns the stored task.
// owner_id is never written.
func (r *SQLiteRepository) Update(ctx context.Context, id string, p Patch) (*Task, error) {
	var sets []string
	var args []any

	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*p.Description))
	}
	if p.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*p.Completed))
	}
	if p.AssigneeID != nil {
		sets = append(sets, "assignee_id = ?")
		args = append(args, nullString(*p.AssigneeID))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339), id)

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?" //nolint:gosec // column list is fixed, values are parameterised
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrAssigneeNotFound
		}
		return nil, fmt.Errorf("updating task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return nil, ErrTaskNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a task.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrTaskNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var description, assignee sql.NullString
	var completed int
	var createdAt, updatedAt string

	err := s.Scan(&t.ID, &t.Title, &description, &completed, &t.OwnerID, &assignee, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	t.Description = description.String
	t.Completed = completed != 0
	if assignee.Valid {
		id := assignee.String
		t.AssigneeID = &id
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
