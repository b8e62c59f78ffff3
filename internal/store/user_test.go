package store

import (
	"testing"
	"time"

	"github.com/nihongo-uy/examhub/internal/model"
)

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id := insertTestUser(t, s, "ana@example.com")

	user, err := s.GetUserByEmail("ana@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user == nil || user.ID != id {
		t.Fatalf("GetUserByEmail = %+v", user)
	}
	if user.Role != model.UserRoleStudent || !user.Active {
		t.Errorf("user = %+v", user)
	}

	missing, err := s.GetUserByEmail("nope@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail(missing): %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown email, got %+v", missing)
	}

	// Duplicate emails are rejected by the unique constraint.
	if _, err := s.CreateUser(model.User{
		Email:        "ana@example.com",
		PasswordHash: "y",
		Role:         model.UserRoleStudent,
		Active:       true,
	}); err == nil {
		t.Error("expected error for duplicate email")
	}

	if err := s.PromoteUser(id); err != nil {
		t.Fatalf("PromoteUser: %v", err)
	}
	user, _ = s.GetUserByID(id)
	if user.Role != model.UserRoleAdmin {
		t.Errorf("Role after promote = %q", user.Role)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "ana@example.com")

	token, err := s.CreateAuthSession(userID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token))
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != userID {
		t.Fatalf("session = %+v", sess)
	}

	unknown, err := s.GetAuthSession("nope")
	if err != nil {
		t.Fatalf("GetAuthSession(unknown): %v", err)
	}
	if unknown != nil {
		t.Errorf("expected nil for unknown token, got %+v", unknown)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, _ = s.GetAuthSession(token)
	if sess != nil {
		t.Error("expected nil after delete")
	}
}

func TestExpiredAuthSession(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "ana@example.com")

	token, err := s.CreateAuthSession(userID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}

	// Backdate the session past its TTL.
	if _, err := s.db.Exec(
		`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Hour), token,
	); err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess != nil {
		t.Error("expected expired session to be treated as missing")
	}
}
