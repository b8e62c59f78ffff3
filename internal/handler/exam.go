package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	appI18n "github.com/nihongo-uy/examhub/internal/i18n"
	"github.com/nihongo-uy/examhub/internal/model"
	"github.com/nihongo-uy/examhub/internal/store"
)

type poolView struct {
	model.Pool
	Label string `json:"label"`
}

func (h *Handler) handlePools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.store.AggregatePools()
	if err != nil {
		slog.Error("failed to aggregate pools", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]poolView, len(pools))
	for i, p := range pools {
		views[i] = poolView{
			Pool:  p,
			Label: appI18n.Tp(r.Context(), "QuestionsAvailable", p.Count),
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"pools": views})
}

type examView struct {
	model.Exam
	LatestTest *model.Test `json:"latest_test,omitempty"`
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	exams, err := h.store.ListExams()
	if err != nil {
		slog.Error("failed to list exams", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Include the caller's latest test per exam so clients can offer
	// resume or review instead of a fresh start.
	views := make([]examView, len(exams))
	for i, e := range exams {
		latest, err := h.store.LatestTestForExam(e.ID, user.ID)
		if err != nil {
			slog.Error("failed to load latest test", "exam_id", e.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		views[i] = examView{Exam: e, LatestTest: latest}
	}
	respondJSON(w, http.StatusOK, map[string]any{"exams": views})
}

type randomExamRequest struct {
	Pools []model.PoolRequest `json:"pools" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreateRandomExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	var req randomExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "SelectAtLeastOne"))
		return
	}

	examID, testID, total, err := h.store.CreateRandomExam(user.ID, req.Pools)
	if err != nil {
		if errors.Is(err, store.ErrEmptyRequest) {
			respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "SelectAtLeastOne"))
			return
		}
		slog.Error("failed to create random exam", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"exam_id": examID,
		"test_id": testID,
		"total":   total,
		"message": appI18n.Td(r.Context(), "RandomExamCreated", map[string]any{"Questions": total}),
	})
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	examID, err := urlID(r, "examID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return
	}

	testID, err := h.store.StartExam(examID, user.ID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "ExamNotFound"))
			return
		}
		slog.Error("failed to start exam", "exam_id", examID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"test_id": testID})
}

// questionView is a question as shown to a test taker, with the correct
// answer and explanation withheld.
type questionView struct {
	ID            int64  `json:"id"`
	SectionName   string `json:"section_name"`
	QuestionText  string `json:"question_text"`
	QuestionImage string `json:"question_image,omitempty"`
	QuestionAudio string `json:"question_audio,omitempty"`
	Answer1       string `json:"answer1"`
	Answer2       string `json:"answer2"`
	Answer3       string `json:"answer3"`
	Answer4       string `json:"answer4"`
	Selected      *int   `json:"selected_answer,omitempty"`
}

func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	test, ok := h.ownedTest(w, r, user)
	if !ok {
		return
	}

	questions, err := h.store.ExamQuestions(test.ExamID)
	if err != nil {
		slog.Error("failed to load test questions", "test_id", test.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	answers, err := h.store.ListAnswers(test.ID)
	if err != nil {
		slog.Error("failed to load answers", "test_id", test.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	selected := make(map[int64]*int, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedAnswer
	}

	views := make([]questionView, 0, len(questions))
	for _, tq := range questions {
		views = append(views, questionView{
			ID:            tq.Question.ID,
			SectionName:   tq.SectionName,
			QuestionText:  tq.Question.QuestionText,
			QuestionImage: tq.Question.QuestionImage,
			QuestionAudio: tq.Question.QuestionAudio,
			Answer1:       tq.Question.Answer1,
			Answer2:       tq.Question.Answer2,
			Answer3:       tq.Question.Answer3,
			Answer4:       tq.Question.Answer4,
			Selected:      selected[tq.Question.ID],
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"test":      test,
		"questions": views,
	})
}

type answerRequest struct {
	QuestionID     int64 `json:"question_id" validate:"required"`
	SelectedAnswer int   `json:"selected_answer" validate:"required,min=1,max=4"`
}

func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	test, ok := h.ownedTest(w, r, user)
	if !ok {
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.SaveAnswer(test.ID, user.ID, req.QuestionID, req.SelectedAnswer); err != nil {
		if strings.Contains(err.Error(), "completed") {
			respondError(w, http.StatusConflict, appI18n.T(r.Context(), "TestAlreadyCompleted"))
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleSubmitTest(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	test, ok := h.ownedTest(w, r, user)
	if !ok {
		return
	}
	if test.CompletedAt != nil {
		respondError(w, http.StatusConflict, appI18n.T(r.Context(), "TestAlreadyCompleted"))
		return
	}

	if err := h.store.CompleteTest(test.ID); err != nil {
		slog.Error("failed to complete test", "test_id", test.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	result, err := h.store.TestResults(test.ID)
	if err != nil {
		slog.Error("failed to score test", "test_id", test.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"correct":    result.Correct,
		"total":      result.Total,
		"percentage": result.Percentage,
		"message": appI18n.Td(r.Context(), "TestCompleted", map[string]any{
			"Correct": result.Correct,
			"Total":   result.Total,
		}),
	})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	test, ok := h.ownedTest(w, r, user)
	if !ok {
		return
	}
	if test.CompletedAt == nil {
		respondError(w, http.StatusConflict, "test is not completed")
		return
	}

	result, err := h.store.TestResults(test.ID)
	if err != nil {
		slog.Error("failed to score test", "test_id", test.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Explanations are stored per language; pick the request's locale.
	lang := appI18n.LangFromContext(r.Context())
	for i := range result.Results {
		result.Results[i].Explanation = model.GetExplanation(result.Results[i].Explanation, lang)
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	history, err := h.store.TestHistory(user.ID)
	if err != nil {
		slog.Error("failed to load test history", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"history": history})
}

// ownedTest loads the test from the URL and checks the caller owns it.
// On failure it writes the error response and returns ok=false.
func (h *Handler) ownedTest(w http.ResponseWriter, r *http.Request, user *model.User) (model.Test, bool) {
	testID, err := urlID(r, "testID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid test ID")
		return model.Test{}, false
	}

	test, err := h.store.GetTest(testID)
	if err != nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "TestNotFound"))
		return model.Test{}, false
	}
	if test.UserID != user.ID && user.Role != model.UserRoleAdmin {
		respondError(w, http.StatusForbidden, appI18n.T(r.Context(), "Forbidden"))
		return model.Test{}, false
	}
	return test, true
}
