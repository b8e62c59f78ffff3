package store

import (
	"strings"
	"testing"

	"github.com/nihongo-uy/examhub/internal/model"
)

// examForTaking builds a two-question exam and returns its ID along
// with the ordered question IDs.
func examForTaking(t *testing.T, s *Store, userID int64) (int64, []int64) {
	t.Helper()
	examID, err := s.CreateExam(model.Exam{Name: "N5", Kind: model.ExamAuthored, CreatedBy: userID})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	secID, qids := newSectionWithQuestions(t, s, userID, "Vocabulary", 2)
	if _, err := s.AddSectionToExam(examID, secID); err != nil {
		t.Fatalf("AddSectionToExam: %v", err)
	}
	return examID, qids
}

func TestStartExamReusesIncompleteTest(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	examID, _ := examForTaking(t, s, userID)

	first, err := s.StartExam(examID, userID)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	second, err := s.StartExam(examID, userID)
	if err != nil {
		t.Fatalf("StartExam again: %v", err)
	}
	if first != second {
		t.Errorf("expected incomplete test %d to be reused, got %d", first, second)
	}

	if err := s.CompleteTest(first); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}
	third, err := s.StartExam(examID, userID)
	if err != nil {
		t.Fatalf("StartExam after completion: %v", err)
	}
	if third == first {
		t.Error("expected a fresh test after the previous one completed")
	}
}

func TestStartExamUnknownExam(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")

	_, err := s.StartExam(42, userID)
	if err == nil || err.Error() != "exam 42 not found" {
		t.Errorf("error = %v", err)
	}
}

func TestSaveAnswerUpserts(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	examID, qids := examForTaking(t, s, userID)
	testID, err := s.StartExam(examID, userID)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}

	if err := s.SaveAnswer(testID, userID, qids[0], 2); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	// Changing the answer overwrites, it does not add a row.
	if err := s.SaveAnswer(testID, userID, qids[0], 3); err != nil {
		t.Fatalf("SaveAnswer overwrite: %v", err)
	}

	answers, err := s.ListAnswers(testID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(answers))
	}
	if answers[0].SelectedAnswer == nil || *answers[0].SelectedAnswer != 3 {
		t.Errorf("SelectedAnswer = %v, want 3", answers[0].SelectedAnswer)
	}
}

func TestSaveAnswerValidation(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	examID, qids := examForTaking(t, s, userID)
	testID, err := s.StartExam(examID, userID)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}

	if err := s.SaveAnswer(99, userID, qids[0], 1); err == nil ||
		!strings.Contains(err.Error(), "not found") {
		t.Errorf("unknown test: %v", err)
	}
	if err := s.SaveAnswer(testID, userID, qids[0], 0); err == nil ||
		!strings.Contains(err.Error(), "must be 1, 2, 3, or 4") {
		t.Errorf("out of range: %v", err)
	}
	if err := s.SaveAnswer(testID, userID, qids[0], 5); err == nil {
		t.Error("expected error for selected answer 5")
	}

	if err := s.CompleteTest(testID); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}
	if err := s.SaveAnswer(testID, userID, qids[0], 1); err == nil ||
		!strings.Contains(err.Error(), "already completed") {
		t.Errorf("answer after completion: %v", err)
	}
}

func TestCompleteTestTwice(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	examID, _ := examForTaking(t, s, userID)
	testID, _ := s.StartExam(examID, userID)

	if err := s.CompleteTest(testID); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}
	if err := s.CompleteTest(testID); err == nil ||
		!strings.Contains(err.Error(), "already completed") {
		t.Errorf("double completion: %v", err)
	}
}

func TestTestResultsScoring(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	examID, qids := examForTaking(t, s, userID)
	testID, _ := s.StartExam(examID, userID)

	// Correct answer for every question is 1. Answer the first right,
	// the second wrong, so the score is 1 of 2.
	if err := s.SaveAnswer(testID, userID, qids[0], 1); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := s.SaveAnswer(testID, userID, qids[1], 4); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := s.CompleteTest(testID); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}

	result, err := s.TestResults(testID)
	if err != nil {
		t.Fatalf("TestResults: %v", err)
	}
	if result.Correct != 1 || result.Total != 2 {
		t.Errorf("score = %d/%d, want 1/2", result.Correct, result.Total)
	}
	if result.Percentage != 50 {
		t.Errorf("Percentage = %v, want 50", result.Percentage)
	}
	if result.ExamName != "N5" {
		t.Errorf("ExamName = %q", result.ExamName)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 question results, got %d", len(result.Results))
	}
	if !result.Results[0].IsCorrect || result.Results[1].IsCorrect {
		t.Errorf("correctness = %v / %v", result.Results[0].IsCorrect, result.Results[1].IsCorrect)
	}

	// An unanswered question scores as wrong, not as an error.
	test2, _ := s.StartExam(examID, userID)
	if err := s.CompleteTest(test2); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}
	result2, err := s.TestResults(test2)
	if err != nil {
		t.Fatalf("TestResults: %v", err)
	}
	if result2.Correct != 0 || result2.Total != 2 {
		t.Errorf("blank test score = %d/%d, want 0/2", result2.Correct, result2.Total)
	}
	if result2.Results[0].SelectedAnswer != nil {
		t.Errorf("unanswered question has selection %v", result2.Results[0].SelectedAnswer)
	}
}

func TestTestHistory(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	examID, qids := examForTaking(t, s, userID)

	// One completed, one in progress: history shows only the former.
	done, _ := s.StartExam(examID, userID)
	if err := s.SaveAnswer(done, userID, qids[0], 1); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := s.CompleteTest(done); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}
	if _, err := s.StartExam(examID, userID); err != nil {
		t.Fatalf("StartExam: %v", err)
	}

	history, err := s.TestHistory(userID)
	if err != nil {
		t.Fatalf("TestHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	entry := history[0]
	if entry.Test.ID != done {
		t.Errorf("history test = %d, want %d", entry.Test.ID, done)
	}
	if entry.Correct != 1 || entry.TotalQuestions != 2 {
		t.Errorf("history score = %d/%d, want 1/2", entry.Correct, entry.TotalQuestions)
	}
}

func TestLatestTestForExam(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	examID, _ := examForTaking(t, s, userID)

	latest, err := s.LatestTestForExam(examID, userID)
	if err != nil {
		t.Fatalf("LatestTestForExam: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil with no tests, got %+v", latest)
	}

	done, _ := s.StartExam(examID, userID)
	if err := s.CompleteTest(done); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}
	latest, err = s.LatestTestForExam(examID, userID)
	if err != nil {
		t.Fatalf("LatestTestForExam: %v", err)
	}
	if latest == nil || latest.ID != done {
		t.Fatalf("expected completed test %d, got %+v", done, latest)
	}

	// An incomplete test takes precedence over completed ones.
	current, _ := s.StartExam(examID, userID)
	latest, err = s.LatestTestForExam(examID, userID)
	if err != nil {
		t.Fatalf("LatestTestForExam: %v", err)
	}
	if latest == nil || latest.ID != current {
		t.Fatalf("expected incomplete test %d, got %+v", current, latest)
	}
}
