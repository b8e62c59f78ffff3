package handler

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/nihongo-uy/examhub/internal/i18n"
	"github.com/nihongo-uy/examhub/internal/model"
)

//go:embed example_exam.json
var exampleExam []byte

type questionRequest struct {
	QuestionText  string `json:"question_text" validate:"required"`
	QuestionImage string `json:"question_image"`
	QuestionAudio string `json:"question_audio"`
	Answer1       string `json:"answer1" validate:"required"`
	Answer2       string `json:"answer2" validate:"required"`
	Answer3       string `json:"answer3" validate:"required"`
	Answer4       string `json:"answer4" validate:"required"`
	CorrectAnswer int    `json:"correct_answer" validate:"required,min=1,max=4"`
	ExplanationEN string `json:"explanation_en"`
	ExplanationES string `json:"explanation_es"`
}

func (req questionRequest) toModel() model.Question {
	q := model.Question{
		QuestionText:  req.QuestionText,
		QuestionImage: req.QuestionImage,
		QuestionAudio: req.QuestionAudio,
		Answer1:       req.Answer1,
		Answer2:       req.Answer2,
		Answer3:       req.Answer3,
		Answer4:       req.Answer4,
		CorrectAnswer: req.CorrectAnswer,
	}
	if req.ExplanationEN != "" || req.ExplanationES != "" {
		q.Explanation = model.SetExplanation(req.ExplanationEN, req.ExplanationES)
	}
	return q
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := req.toModel()
	q.CreatedBy = user.ID
	id, err := h.store.InsertQuestion(q)
	if err != nil {
		slog.Error("failed to insert question", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := h.store.GetQuestion(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	questions, err := h.store.ListQuestionsByCreator(user.ID)
	if err != nil {
		slog.Error("failed to list questions", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, ok := h.ownedQuestion(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	q, ok := h.ownedQuestion(w, r)
	if !ok {
		return
	}

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated := req.toModel()
	updated.ID = q.ID
	if err := h.store.UpdateQuestion(updated); err != nil {
		slog.Error("failed to update question", "id", q.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	result, err := h.store.GetQuestion(q.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	q, ok := h.ownedQuestion(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteQuestion(q.ID); err != nil {
		if strings.Contains(err.Error(), "cannot be deleted") {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("failed to delete question", "id", q.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ownedQuestion loads the question from the URL and checks the caller
// created it. Admins may touch any question.
func (h *Handler) ownedQuestion(w http.ResponseWriter, r *http.Request) (model.Question, bool) {
	id, err := urlID(r, "questionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid question ID")
		return model.Question{}, false
	}

	q, err := h.store.GetQuestion(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "question not found")
			return model.Question{}, false
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return model.Question{}, false
	}

	user := model.UserFromContext(r.Context())
	if q.CreatedBy != user.ID && user.Role != model.UserRoleAdmin {
		respondError(w, http.StatusForbidden, appI18n.T(r.Context(), "Forbidden"))
		return model.Question{}, false
	}
	return q, true
}

type sectionRequest struct {
	Name              string `json:"name" validate:"required"`
	NumberOfQuestions int    `json:"number_of_questions" validate:"min=0"`
}

func (h *Handler) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.store.CreateSection(model.Section{
		Name:              req.Name,
		NumberOfQuestions: req.NumberOfQuestions,
	})
	if err != nil {
		slog.Error("failed to create section", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sec, err := h.store.GetSection(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusCreated, sec)
}

func (h *Handler) handleListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.store.ListSections()
	if err != nil {
		slog.Error("failed to list sections", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

func (h *Handler) handleGetSection(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "sectionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid section ID")
		return
	}

	sec, err := h.store.GetSection(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "section not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, sec)
}

func (h *Handler) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "sectionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid section ID")
		return
	}

	var req sectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.UpdateSection(model.Section{
		ID:                id,
		Name:              req.Name,
		NumberOfQuestions: req.NumberOfQuestions,
	}); err != nil {
		slog.Error("failed to update section", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sec, err := h.store.GetSection(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, sec)
}

func (h *Handler) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "sectionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid section ID")
		return
	}

	if err := h.store.DeleteSection(id); err != nil {
		if strings.Contains(err.Error(), "cannot be deleted") {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("failed to delete section", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleListSectionQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "sectionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid section ID")
		return
	}

	links, err := h.store.ListSectionQuestions(id)
	if err != nil {
		slog.Error("failed to list section questions", "section_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"questions": links})
}

func (h *Handler) handleAddQuestionToSection(w http.ResponseWriter, r *http.Request) {
	sectionID, err := urlID(r, "sectionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid section ID")
		return
	}

	var req struct {
		QuestionID int64 `json:"question_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	linkID, err := h.store.AddQuestionToSection(sectionID, req.QuestionID)
	if err != nil {
		if strings.Contains(err.Error(), "already") {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("failed to add question to section", "section_id", sectionID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"link_id": linkID})
}

func (h *Handler) handleRemoveQuestionFromSection(w http.ResponseWriter, r *http.Request) {
	sectionID, err := urlID(r, "sectionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid section ID")
		return
	}
	questionID, err := urlID(r, "questionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid question ID")
		return
	}

	if err := h.store.RemoveQuestionFromSection(sectionID, questionID); err != nil {
		slog.Error("failed to remove question from section", "section_id", sectionID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type orderRequest struct {
	Order int `json:"order" validate:"required,min=1"`
}

func (h *Handler) handleReorderSectionQuestion(w http.ResponseWriter, r *http.Request) {
	linkID, err := urlID(r, "linkID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid link ID")
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.UpdateSectionQuestionOrder(linkID, req.Order); err != nil {
		slog.Error("failed to reorder section question", "link_id", linkID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.store.CreateExam(model.Exam{
		Name:      req.Name,
		Kind:      model.ExamAuthored,
		CreatedBy: user.ID,
	})
	if err != nil {
		slog.Error("failed to create exam", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	exam, err := h.store.GetExam(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusCreated, exam)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "examID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return
	}

	exam, err := h.store.GetExam(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "ExamNotFound"))
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, exam)
}

func (h *Handler) handleRenameExam(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.UpdateExamName(exam.ID, req.Name); err != nil {
		slog.Error("failed to rename exam", "id", exam.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := h.store.GetExam(exam.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteExam(exam.ID); err != nil {
		if strings.Contains(err.Error(), "cannot be deleted") {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("failed to delete exam", "id", exam.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ownedExam(w http.ResponseWriter, r *http.Request) (model.Exam, bool) {
	id, err := urlID(r, "examID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return model.Exam{}, false
	}

	exam, err := h.store.GetExam(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "ExamNotFound"))
			return model.Exam{}, false
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return model.Exam{}, false
	}

	user := model.UserFromContext(r.Context())
	if exam.CreatedBy != user.ID && user.Role != model.UserRoleAdmin {
		respondError(w, http.StatusForbidden, appI18n.T(r.Context(), "Forbidden"))
		return model.Exam{}, false
	}
	return exam, true
}

func (h *Handler) handleListExamSections(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "examID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return
	}

	links, err := h.store.ListExamSections(id)
	if err != nil {
		slog.Error("failed to list exam sections", "exam_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sections": links})
}

func (h *Handler) handleAddSectionToExam(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}

	var req struct {
		SectionID int64 `json:"section_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	linkID, err := h.store.AddSectionToExam(exam.ID, req.SectionID)
	if err != nil {
		if strings.Contains(err.Error(), "already") {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("failed to add section to exam", "exam_id", exam.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"link_id": linkID})
}

func (h *Handler) handleRemoveSectionFromExam(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.ownedExam(w, r)
	if !ok {
		return
	}
	sectionID, err := urlID(r, "sectionID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid section ID")
		return
	}

	if err := h.store.RemoveSectionFromExam(exam.ID, sectionID); err != nil {
		slog.Error("failed to remove section from exam", "exam_id", exam.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleReorderExamSection(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ownedExam(w, r); !ok {
		return
	}
	linkID, err := urlID(r, "linkID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid link ID")
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.UpdateExamSectionOrder(linkID, req.Order); err != nil {
		slog.Error("failed to reorder exam section", "link_id", linkID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// readExamDocument reads an exam document from either a multipart file
// upload (field "exam_file") or a raw JSON body.
func readExamDocument(r *http.Request) (model.ExamDocument, error) {
	var doc model.ExamDocument

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return doc, errors.New("file too large")
		}
		file, _, err := r.FormFile("exam_file")
		if err != nil {
			return doc, errors.New("no file uploaded")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return doc, errors.New("failed to read file")
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return doc, errors.New("invalid JSON: " + err.Error())
		}
		return doc, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		return doc, errors.New("invalid JSON: " + err.Error())
	}
	return doc, nil
}

func (h *Handler) handleImportExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	doc, err := readExamDocument(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, exam, err := h.store.ImportExam(doc, user.ID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("imported exam", "exam_id", exam.ID, "name", exam.Name, "user_id", user.ID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": msg,
		"exam":    exam,
	})
}

func (h *Handler) handleValidateExam(w http.ResponseWriter, r *http.Request) {
	doc, err := readExamDocument(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	valid, problems := model.ValidateExamDocument(doc)
	respondJSON(w, http.StatusOK, map[string]any{
		"valid":  valid,
		"errors": problems,
	})
}

func (h *Handler) handleReloadExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	examRef := chi.URLParam(r, "examRef")

	doc, err := readExamDocument(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, exam, err := h.store.ReloadExam(doc, examRef, user.ID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("reloaded exam", "exam_id", exam.ID, "name", exam.Name, "user_id", user.ID)
	respondJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"exam":    exam,
	})
}

func (h *Handler) handleExampleExam(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="example_exam.json"`)
	_, _ = w.Write(exampleExam)
}

func (h *Handler) handleExportResults(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportResults()
	if err != nil {
		slog.Error("failed to export results", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="results_export.json"`)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(export)
}
