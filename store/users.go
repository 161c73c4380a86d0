package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tasktrack/api"
)

const uniqueViolation = "23505"

// UserStore is the credential store adapter over Postgres.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByID returns the user or nil when no row matches.
func (s *UserStore) FindByID(ctx context.Context, id int) (*api.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail returns the user or nil when no row matches. Callers are
// expected to lowercase-normalize the email first.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*api.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create inserts a new user. A duplicate email maps to api.ErrEmailTaken.
func (s *UserStore) Create(ctx context.Context, name, email, passwordHash string, role api.Role) (*api.User, error) {
	u := &api.User{Name: name, Email: email, PasswordHash: passwordHash, Role: role}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		name, email, passwordHash, string(role),
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, api.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// List returns all users, newest first.
func (s *UserStore) List(ctx context.Context) ([]api.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []api.User
	for rows.Next() {
		var u api.User
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = api.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row *sql.Row) (*api.User, error) {
	var u api.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = api.Role(role)
	return &u, nil
}
