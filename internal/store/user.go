package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/nihongo-uy/examhub/internal/model"
)

// CreateUser inserts a new user.
func (s *Store) CreateUser(u model.User) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO users (email, password_hash, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.Email, u.PasswordHash, u.Role, u.Active, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("failed to create user", "email", u.Email, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "email", u.Email, "role", u.Role)
	return id, nil
}

// GetUserByEmail returns a user by email, or nil if absent.
func (s *Store) GetUserByEmail(email string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(
		`SELECT id, email, password_hash, role, active, created_at
		 FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns a user by ID, or nil if absent.
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(
		`SELECT id, email, password_hash, role, active, created_at
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// PromoteUser raises a user's role to admin.
func (s *Store) PromoteUser(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET role = ? WHERE id = ?`, model.UserRoleAdmin, id)
	return err
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
