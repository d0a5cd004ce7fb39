package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user account persistence.
//
// Lookups by email are case-insensitive because emails are stored
// normalised. No method other than Create writes password_hash.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateProfile(ctx context.Context, id string, profile Profile) (*User, error)
	UpdateRole(ctx context.Context, id string, role Role) (*User, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = "id, email, password_hash, role, name, work_area, description, profile_picture, created_at, updated_at"

// Create inserts a new user account. The ID is generated if empty and the
// email is normalised before storage.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	user.Email = NormalizeEmail(user.Email)

	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, string(user.Role), user.Name,
		nullString(user.WorkArea), nullString(user.Description), nullString(user.ProfilePicture),
		now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetByEmail retrieves a user by email, ignoring case and surrounding space.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", NormalizeEmail(email)))
}

// List returns all users ordered by creation date.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// UpdateProfile applies the non-nil fields of profile and returns the
// updated user.
func (r *SQLiteUserRepository) UpdateProfile(ctx context.Context, id string, profile Profile) (*User, error) {
	var sets []string
	var args []any

	if profile.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*profile.Name))
	}
	if profile.WorkArea != nil {
		sets = append(sets, "work_area = ?")
		args = append(args, nullString(strings.TrimSpace(*profile.WorkArea)))
	}
	if profile.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(strings.TrimSpace(*profile.Description)))
	}
	if profile.ProfilePicture != nil {
		sets = append(sets, "profile_picture = ?")
		args = append(args, nullString(*profile.ProfilePicture))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339), id)

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?" //nolint:gosec // column list is fixed, values are parameterised
	if err := r.execOne(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return r.GetByID(ctx, id)
}

// UpdateRole changes a user's role and returns the updated user.
func (r *SQLiteUserRepository) UpdateRole(ctx context.Context, id string, role Role) (*User, error) {
	if !IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	err := r.execOne(ctx, "UPDATE users SET role = ?, updated_at = ? WHERE id = ?",
		string(role), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("updating role: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a user account by ID. Tasks owned by the user are removed
// and assignments to the user are cleared by the schema's foreign keys.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	if err := r.execOne(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// Count returns the total number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// execOne runs a statement that must touch exactly one user row.
func (r *SQLiteUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var role string
	var workArea, description, picture sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.Name,
		&workArea, &description, &picture, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = Role(role)
	u.WorkArea = workArea.String
	u.Description = description.String
	u.ProfilePicture = picture.String
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
