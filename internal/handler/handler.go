package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appI18n "github.com/nihongo-uy/examhub/internal/i18n"
	"github.com/nihongo-uy/examhub/internal/model"
	"github.com/nihongo-uy/examhub/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	config   model.ServerConfig
	validate *validator.Validate
}

// New creates a new Handler.
func New(s *store.Store, cfg model.ServerConfig) (*Handler, error) {
	return &Handler{store: s, config: cfg, validate: validator.New()}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Post("/language", h.handleSetLanguage)
	r.Get("/exams/example", h.handleExampleExam)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/pools", h.handlePools)
		r.Get("/exams", h.handleListExams)
		r.Post("/exams", h.handleCreateExam)
		r.Post("/exams/random", h.handleCreateRandomExam)
		r.Get("/exams/{examID}", h.handleGetExam)
		r.Put("/exams/{examID}", h.handleRenameExam)
		r.Delete("/exams/{examID}", h.handleDeleteExam)
		r.Post("/exams/{examID}/start", h.handleStartExam)
		r.Get("/exams/{examID}/sections", h.handleListExamSections)
		r.Post("/exams/{examID}/sections", h.handleAddSectionToExam)
		r.Delete("/exams/{examID}/sections/{sectionID}", h.handleRemoveSectionFromExam)
		r.Put("/exams/{examID}/sections/{linkID}/order", h.handleReorderExamSection)

		r.Get("/tests/{testID}", h.handleTest)
		r.Post("/tests/{testID}/answers", h.handleSaveAnswer)
		r.Post("/tests/{testID}/submit", h.handleSubmitTest)
		r.Get("/tests/{testID}/results", h.handleResults)
		r.Get("/history", h.handleHistory)

		r.Post("/questions", h.handleCreateQuestion)
		r.Get("/questions", h.handleListQuestions)
		r.Get("/questions/{questionID}", h.handleGetQuestion)
		r.Put("/questions/{questionID}", h.handleUpdateQuestion)
		r.Delete("/questions/{questionID}", h.handleDeleteQuestion)

		r.Post("/sections", h.handleCreateSection)
		r.Get("/sections", h.handleListSections)
		r.Get("/sections/{sectionID}", h.handleGetSection)
		r.Put("/sections/{sectionID}", h.handleUpdateSection)
		r.Delete("/sections/{sectionID}", h.handleDeleteSection)
		r.Get("/sections/{sectionID}/questions", h.handleListSectionQuestions)
		r.Post("/sections/{sectionID}/questions", h.handleAddQuestionToSection)
		r.Delete("/sections/{sectionID}/questions/{questionID}", h.handleRemoveQuestionFromSection)
		r.Put("/sections/{sectionID}/questions/{linkID}/order", h.handleReorderSectionQuestion)

		r.Post("/exams/import", h.handleImportExam)
		r.Post("/exams/validate", h.handleValidateExam)
		r.Post("/exams/{examRef}/reload", h.handleReloadExam)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/admin/export", h.handleExportResults)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errResp struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errResp{Error: msg})
}

// urlID parses a numeric chi URL parameter.
func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !appI18n.IsSupported(req.Language) {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "LanguageNotSupported"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     appI18n.LangCookieName,
		Value:    req.Language,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})

	ctx := appI18n.WithLocale(r.Context(), req.Language)
	respondJSON(w, http.StatusOK, map[string]string{
		"language": req.Language,
		"message":  appI18n.T(ctx, "LanguageChanged"),
	})
}
