package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nihongo-uy/examhub/internal/model"
)

// CreateTest starts a new test attempt against an exam.
func (s *Store) CreateTest(examID, userID int64) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO tests (exam_id, user_id, started_at) VALUES (?, ?, ?)`,
		examID, userID, time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTest returns a test by ID.
func (s *Store) GetTest(id int64) (model.Test, error) {
	var t model.Test
	err := s.db.QueryRow(
		`SELECT id, exam_id, user_id, started_at, completed_at FROM tests WHERE id = ?`, id,
	).Scan(&t.ID, &t.ExamID, &t.UserID, &t.StartedAt, &t.CompletedAt)
	return t, err
}

// GetIncompleteTest returns the user's newest incomplete test for an
// exam, or nil. At most one should exist: StartExam reuses it instead
// of creating another.
func (s *Store) GetIncompleteTest(examID, userID int64) (*model.Test, error) {
	var t model.Test
	err := s.db.QueryRow(
		`SELECT id, exam_id, user_id, started_at, completed_at FROM tests
		 WHERE exam_id = ? AND user_id = ? AND completed_at IS NULL
		 ORDER BY started_at DESC, id DESC LIMIT 1`,
		examID, userID,
	).Scan(&t.ID, &t.ExamID, &t.UserID, &t.StartedAt, &t.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// StartExam returns the user's existing incomplete test for the exam,
// or starts a new one.
func (s *Store) StartExam(examID, userID int64) (int64, error) {
	if _, err := s.GetExam(examID); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("exam %d not found", examID)
		}
		return 0, err
	}
	existing, err := s.GetIncompleteTest(examID, userID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	return s.CreateTest(examID, userID)
}

// LatestTestForExam returns the user's most relevant test for an exam
// for display: an incomplete one first, otherwise the most recently
// completed one, otherwise nil.
func (s *Store) LatestTestForExam(examID, userID int64) (*model.Test, error) {
	if t, err := s.GetIncompleteTest(examID, userID); err != nil || t != nil {
		return t, err
	}
	var t model.Test
	err := s.db.QueryRow(
		`SELECT id, exam_id, user_id, started_at, completed_at FROM tests
		 WHERE exam_id = ? AND user_id = ? AND completed_at IS NOT NULL
		 ORDER BY completed_at DESC, id DESC LIMIT 1`,
		examID, userID,
	).Scan(&t.ID, &t.ExamID, &t.UserID, &t.StartedAt, &t.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveAnswer upserts the user's selected option for one question within
// a test. The last write wins, and answered_at is refreshed on every
// write. Completed tests reject further answers.
func (s *Store) SaveAnswer(testID, userID, questionID int64, selected int) error {
	test, err := s.GetTest(testID)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("test %d not found", testID)
		}
		return err
	}
	if test.CompletedAt != nil {
		return fmt.Errorf("test %d is already completed", testID)
	}
	if selected < 1 || selected > 4 {
		return fmt.Errorf("selected answer must be 1, 2, 3, or 4")
	}

	_, err = s.db.Exec(
		`INSERT INTO test_answers (test_id, user_id, question_id, selected_answer, answered_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(test_id, question_id) DO UPDATE SET selected_answer = ?, answered_at = ?`,
		testID, userID, questionID, selected, time.Now().UTC(),
		selected, time.Now().UTC(),
	)
	return err
}

// ListAnswers returns all answers recorded for a test.
func (s *Store) ListAnswers(testID int64) ([]model.TestAnswer, error) {
	rows, err := s.db.Query(
		`SELECT id, test_id, user_id, question_id, selected_answer, answered_at
		 FROM test_answers WHERE test_id = ?`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.TestAnswer
	for rows.Next() {
		var a model.TestAnswer
		if err := rows.Scan(&a.ID, &a.TestID, &a.UserID, &a.QuestionID, &a.SelectedAnswer, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CompleteTest marks a test as completed. Completing twice is an error.
func (s *Store) CompleteTest(testID int64) error {
	test, err := s.GetTest(testID)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("test %d not found", testID)
		}
		return err
	}
	if test.CompletedAt != nil {
		return fmt.Errorf("test %d is already completed", testID)
	}
	_, err = s.db.Exec(`UPDATE tests SET completed_at = ? WHERE id = ?`, time.Now().UTC(), testID)
	return err
}

// TestResults scores a completed test: every exam question in order,
// the user's selection, correctness, and the overall percentage.
// Explanations are localized by the caller; the raw stored field is
// returned here.
func (s *Store) TestResults(testID int64) (*model.TestResult, error) {
	test, err := s.GetTest(testID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("test %d not found", testID)
		}
		return nil, err
	}
	exam, err := s.GetExam(test.ExamID)
	if err != nil {
		return nil, err
	}
	questions, err := s.ExamQuestions(test.ExamID)
	if err != nil {
		return nil, err
	}
	answers, err := s.ListAnswers(testID)
	if err != nil {
		return nil, err
	}
	selected := make(map[int64]*int, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedAnswer
	}

	result := &model.TestResult{
		Test:     test,
		ExamName: exam.Name,
		Total:    len(questions),
	}
	for _, tq := range questions {
		sel := selected[tq.Question.ID]
		correct := sel != nil && *sel == tq.Question.CorrectAnswer
		if correct {
			result.Correct++
		}
		result.Results = append(result.Results, model.QuestionResult{
			Question:       tq.Question,
			SelectedAnswer: sel,
			IsCorrect:      correct,
			Explanation:    tq.Question.Explanation,
		})
	}
	if result.Total > 0 {
		result.Percentage = float64(result.Correct) / float64(result.Total) * 100
	}
	return result, nil
}

// TestHistory returns the user's completed tests, newest first, with
// per-test scores.
func (s *Store) TestHistory(userID int64) ([]model.TestSummary, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, user_id, started_at, completed_at FROM tests
		 WHERE user_id = ? AND completed_at IS NOT NULL
		 ORDER BY completed_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.ExamID, &t.UserID, &t.StartedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var history []model.TestSummary
	for _, t := range tests {
		result, err := s.TestResults(t.ID)
		if err != nil {
			return nil, err
		}
		history = append(history, model.TestSummary{
			Test:           t,
			ExamName:       result.ExamName,
			TotalQuestions: result.Total,
			Correct:        result.Correct,
			Percentage:     result.Percentage,
			StartedAt:      t.StartedAt,
			CompletedAt:    *t.CompletedAt,
		})
	}
	return history, nil
}
