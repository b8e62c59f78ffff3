package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/nihongo-uy/examhub/internal/i18n"
	"github.com/nihongo-uy/examhub/internal/model"
)

const sessionCookieName = "session"

// requireAuth is middleware that checks for a valid session cookie.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "Unauthorized"))
			return
		}

		authSess, err := h.store.GetAuthSession(cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "Unauthorized"))
			return
		}
		if authSess == nil {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "Unauthorized"))
			return
		}

		user, err := h.store.GetUserByID(authSess.UserID)
		if err != nil || user == nil || !user.Active {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "Unauthorized"))
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "Unauthorized"))
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, http.StatusForbidden, appI18n.T(r.Context(), "Forbidden"))
		})
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, appI18n.T(r.Context(), "EmailTaken"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	userID, err := h.store.CreateUser(model.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         model.UserRoleStudent,
		Active:       true,
	})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// New accounts are logged in right away.
	if err := h.setSessionCookie(w, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, userResponse{
		ID:    userID,
		Email: req.Email,
		Role:  string(model.UserRoleStudent),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "InvalidCredentials"))
		return
	}
	if user == nil || !user.Active {
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "InvalidCredentials"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "InvalidCredentials"))
		return
	}

	if err := h.setSessionCookie(w, user.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, userResponse{
		ID:    user.ID,
		Email: user.Email,
		Role:  string(user.Role),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.store.DeleteAuthSession(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, userID int64) error {
	token, err := h.store.CreateAuthSession(userID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	return nil
}
