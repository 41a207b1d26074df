package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipvault/internal/domain"
	"clipvault/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL COLLATE NOCASE UNIQUE,
	email TEXT NOT NULL COLLATE NOCASE UNIQUE,
	full_name TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	avatar_url TEXT NOT NULL,
	cover_image_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, full_name, password_hash, avatar_url, cover_image_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AvatarURL,
		user.CoverImageURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateFields(err); len(dup) > 0 {
			return 0, &repository.DuplicateError{Fields: dup}
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) FindIdentityConflicts(ctx context.Context, username, email string) ([]string, error) {
	// The columns collate NOCASE, so = here matches exactly what the unique
	// index would reject on insert.
	rows, err := r.db.QueryContext(ctx, `
SELECT username, email
FROM users
WHERE username = ? OR email = ?`,
		username, email,
	)
	if err != nil {
		return nil, fmt.Errorf("query identity conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []string
	seen := make(map[string]bool)
	for rows.Next() {
		var existingName, existingEmail string
		if err := rows.Scan(&existingName, &existingEmail); err != nil {
			return nil, fmt.Errorf("scan identity conflict: %w", err)
		}
		if strings.EqualFold(existingName, username) && !seen["username"] {
			seen["username"] = true
			conflicts = append(conflicts, "username")
		}
		if strings.EqualFold(existingEmail, email) && !seen["email"] {
			seen["email"] = true
			conflicts = append(conflicts, "email")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity conflicts: %w", err)
	}
	return conflicts, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`WHERE username = ?`, username)
	return scanUser(row)
}

const selectUser = `
SELECT id, username, email, full_name, password_hash, avatar_url, cover_image_url, created_at, updated_at
FROM users
`

func duplicateFields(err error) []string {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique") {
		return nil
	}
	var fields []string
	if strings.Contains(msg, "users.username") {
		fields = append(fields, "username")
	}
	if strings.Contains(msg, "users.email") {
		fields = append(fields, "email")
	}
	if len(fields) == 0 {
		// Unique violation without a recognizable column; report both so the
		// caller still classifies it as a duplicate rather than a store fault.
		fields = []string{"username", "email"}
	}
	return fields
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CoverImageURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
