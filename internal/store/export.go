package store

import (
	"fmt"
	"time"

	"github.com/nihongo-uy/examhub/internal/model"
)

// ExportResults builds an export of every completed test: exam, user,
// score, and per-question answers.
func (s *Store) ExportResults() (*model.ResultsExport, error) {
	rows, err := s.db.Query(
		`SELECT id FROM tests WHERE completed_at IS NOT NULL ORDER BY completed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list completed tests: %w", err)
	}
	defer rows.Close()
	var testIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		testIDs = append(testIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	export := &model.ResultsExport{
		ExportedAt: time.Now().UTC(),
		TestCount:  len(testIDs),
	}
	for _, testID := range testIDs {
		result, err := s.TestResults(testID)
		if err != nil {
			return nil, fmt.Errorf("score test %d: %w", testID, err)
		}
		exam, err := s.GetExam(result.Test.ExamID)
		if err != nil {
			return nil, fmt.Errorf("get exam %d: %w", result.Test.ExamID, err)
		}
		user, err := s.GetUserByID(result.Test.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", result.Test.UserID, err)
		}
		var email string
		if user != nil {
			email = user.Email
		}

		questions, err := s.ExamQuestions(result.Test.ExamID)
		if err != nil {
			return nil, err
		}
		sectionByQuestion := make(map[int64]string, len(questions))
		for _, tq := range questions {
			sectionByQuestion[tq.Question.ID] = tq.SectionName
		}

		re := model.ResultExport{
			TestID:      result.Test.ID,
			UserEmail:   email,
			ExamName:    exam.Name,
			ExamKind:    exam.Kind,
			StartedAt:   result.Test.StartedAt,
			CompletedAt: *result.Test.CompletedAt,
			Correct:     result.Correct,
			Total:       result.Total,
			Percentage:  result.Percentage,
		}
		for _, qr := range result.Results {
			re.Answers = append(re.Answers, model.AnswerExport{
				QuestionText:   qr.Question.QuestionText,
				SectionName:    sectionByQuestion[qr.Question.ID],
				SelectedAnswer: qr.SelectedAnswer,
				CorrectAnswer:  qr.Question.CorrectAnswer,
				IsCorrect:      qr.IsCorrect,
			})
		}
		export.Results = append(export.Results, re)
	}

	return export, nil
}
