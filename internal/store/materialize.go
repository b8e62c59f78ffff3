package store

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nihongo-uy/examhub/internal/model"
)

// ErrEmptyRequest is returned when a random-exam request selects no
// pool with a positive question count.
var ErrEmptyRequest = errors.New("select at least one section with questions")

// sampleFunc is swapped in tests.
var sampleFunc = sampleQuestions

// sampleQuestions draws a uniform sample of min(k, len(ids)) question
// IDs without replacement. The input slice is not modified.
func sampleQuestions(ids []int64, k int) []int64 {
	out := append([]int64(nil), ids...)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}

// CreateRandomExam materializes a one-off snapshot exam from the given
// pool requests and auto-starts a test against it for the user.
//
// Requests are processed in slice order, which becomes the section
// order of the new exam. A request whose pool resolves to no questions,
// or whose count is not positive, is skipped without failing the whole
// operation. The exam, its sections, and all links are written in one
// transaction: any failure rolls everything back and no test is
// created. A request where every pool ends up skipped is rejected.
//
// Returns the new exam ID, the started test ID, and the total number of
// questions materialized.
func (s *Store) CreateRandomExam(userID int64, requests []model.PoolRequest) (examID, testID int64, total int, err error) {
	effective := 0
	for _, req := range requests {
		if req.Count > 0 {
			effective++
		}
	}
	if effective == 0 {
		return 0, 0, 0, ErrEmptyRequest
	}

	name := fmt.Sprintf("Random Practice Exam - %s", time.Now().UTC().Format("2006-01-02 15:04"))

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO exams (name, kind, created_by, created_at) VALUES (?, ?, ?, ?)`,
		name, model.ExamGenerated, userID, time.Now().UTC(),
	)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("create exam: %w", err)
	}
	examID, err = res.LastInsertId()
	if err != nil {
		return 0, 0, 0, err
	}

	sectionOrder := 0
	for _, req := range requests {
		if req.Count <= 0 {
			continue
		}
		pool, err := s.PoolByName(req.Name)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("resolve pool %q: %w", req.Name, err)
		}
		if pool == nil {
			slog.Debug("skipping empty pool", "pool", req.Name)
			continue
		}

		selected := sampleFunc(pool.QuestionIDs, req.Count)
		if len(selected) == 0 {
			continue
		}

		res, err := tx.Exec(
			`INSERT INTO sections (name, number_of_questions) VALUES (?, ?)`,
			req.Name, len(selected),
		)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("create section %q: %w", req.Name, err)
		}
		sectionID, err := res.LastInsertId()
		if err != nil {
			return 0, 0, 0, err
		}

		for i, questionID := range selected {
			_, err := tx.Exec(
				`INSERT INTO section_questions (section_id, question_id, "order") VALUES (?, ?, ?)`,
				sectionID, questionID, i+1,
			)
			if err != nil {
				return 0, 0, 0, fmt.Errorf("link question %d to section %q: %w", questionID, req.Name, err)
			}
		}

		sectionOrder++
		_, err = tx.Exec(
			`INSERT INTO exam_sections (exam_id, section_id, "order") VALUES (?, ?, ?)`,
			examID, sectionID, sectionOrder,
		)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("link section %q to exam: %w", req.Name, err)
		}
		total += len(selected)
	}

	// Every pool was skipped: refuse to persist a sectionless exam.
	if sectionOrder == 0 {
		return 0, 0, 0, ErrEmptyRequest
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, err
	}

	// The snapshot exam is always auto-started.
	testID, err = s.CreateTest(examID, userID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("start test: %w", err)
	}

	slog.Info("materialized random exam",
		"exam_id", examID, "test_id", testID, "sections", sectionOrder, "questions", total)
	return examID, testID, total, nil
}
