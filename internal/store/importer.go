package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nihongo-uy/examhub/internal/model"
)

// ImportExam creates a brand-new exam graph from a document. Validation
// fails fast: the first defect aborts the whole operation, names the
// offending section or question ordinal, and leaves nothing persisted.
// The entire graph is committed once at the end. Importing the same
// document twice creates two independent exams.
//
// On success the returned message summarizes the exam name, section
// count, and total question count.
func (s *Store) ImportExam(doc model.ExamDocument, userID int64) (string, *model.Exam, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, fmt.Errorf("user with ID %d not found", userID)
	}

	if doc.Name == "" {
		return "", nil, fmt.Errorf("missing required field: 'name'")
	}
	if doc.Sections == nil {
		return "", nil, fmt.Errorf("missing or invalid 'sections' field")
	}
	if len(doc.Sections) == 0 {
		return "", nil, fmt.Errorf("exam must have at least one section")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO exams (name, kind, created_by, created_at) VALUES (?, ?, ?, ?)`,
		doc.Name, model.ExamAuthored, userID, now,
	)
	if err != nil {
		return "", nil, fmt.Errorf("create exam: %w", err)
	}
	examID, err := res.LastInsertId()
	if err != nil {
		return "", nil, err
	}

	total := 0
	for i, sectionDoc := range doc.Sections {
		sectionOrder := i + 1
		if sectionDoc.Name == "" {
			return "", nil, fmt.Errorf("section %d missing 'name' field", sectionOrder)
		}
		if sectionDoc.Questions == nil {
			return "", nil, fmt.Errorf("section '%s' missing or invalid 'questions' field", sectionDoc.Name)
		}
		if len(sectionDoc.Questions) == 0 {
			return "", nil, fmt.Errorf("section '%s' must have at least one question", sectionDoc.Name)
		}

		res, err := tx.Exec(
			`INSERT INTO sections (name, number_of_questions) VALUES (?, ?)`,
			sectionDoc.Name, len(sectionDoc.Questions),
		)
		if err != nil {
			return "", nil, fmt.Errorf("create section '%s': %w", sectionDoc.Name, err)
		}
		sectionID, err := res.LastInsertId()
		if err != nil {
			return "", nil, err
		}

		for j, questionDoc := range sectionDoc.Questions {
			questionOrder := j + 1
			questionID, err := insertDocQuestion(tx, questionDoc, sectionDoc.Name, questionOrder, userID, now)
			if err != nil {
				return "", nil, err
			}
			_, err = tx.Exec(
				`INSERT INTO section_questions (section_id, question_id, "order") VALUES (?, ?, ?)`,
				sectionID, questionID, questionOrder,
			)
			if err != nil {
				return "", nil, fmt.Errorf("link question %d in section '%s': %w", questionOrder, sectionDoc.Name, err)
			}
		}

		_, err = tx.Exec(
			`INSERT INTO exam_sections (exam_id, section_id, "order") VALUES (?, ?, ?)`,
			examID, sectionID, sectionOrder,
		)
		if err != nil {
			return "", nil, fmt.Errorf("link section '%s' to exam: %w", sectionDoc.Name, err)
		}
		total += len(sectionDoc.Questions)
	}

	if err := tx.Commit(); err != nil {
		return "", nil, err
	}

	exam, err := s.GetExam(examID)
	if err != nil {
		return "", nil, err
	}
	slog.Info("imported exam", "exam_id", examID, "name", doc.Name,
		"sections", len(doc.Sections), "questions", total)
	message := fmt.Sprintf("Successfully imported exam '%s' with %d sections and %d questions",
		doc.Name, len(doc.Sections), total)
	return message, &exam, nil
}

// validateDocQuestion applies the importer's fail-fast per-question
// checks, with messages naming the section and question ordinal.
func validateDocQuestion(q model.QuestionDocument, sectionName string, ordinal int) error {
	required := []struct {
		name  string
		empty bool
	}{
		{"question_text", q.QuestionText == ""},
		{"answer_1", q.Answer1 == ""},
		{"answer_2", q.Answer2 == ""},
		{"answer_3", q.Answer3 == ""},
		{"answer_4", q.Answer4 == ""},
		{"correct_answer", q.CorrectAnswer == nil},
	}
	for _, f := range required {
		if f.empty {
			return fmt.Errorf("question %d in section '%s' missing '%s'", ordinal, sectionName, f.name)
		}
	}
	if *q.CorrectAnswer < 1 || *q.CorrectAnswer > 4 {
		return fmt.Errorf("question %d in section '%s' has invalid 'correct_answer' (must be 1, 2, 3, or 4)", ordinal, sectionName)
	}
	return nil
}

func insertDocQuestion(tx *sql.Tx, q model.QuestionDocument, sectionName string, ordinal int, userID int64, now time.Time) (int64, error) {
	if err := validateDocQuestion(q, sectionName, ordinal); err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		`INSERT INTO questions (question_text, question_image, question_audio,
		 answer_1, answer_2, answer_3, answer_4, correct_answer, explanation,
		 created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.QuestionText, q.QuestionImage, q.QuestionAudio,
		q.Answer1, q.Answer2, q.Answer3, q.Answer4, *q.CorrectAnswer,
		q.EncodedExplanation(), userID, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("create question %d in section '%s': %w", ordinal, sectionName, err)
	}
	return res.LastInsertId()
}

// ReloadExam refreshes an existing exam's content from a document
// without invalidating historical test data. The exam is resolved by
// name, or by numeric ID when examRef parses as an integer.
//
// Sections are matched by name: a document section whose name is
// already linked to the exam is updated in place (capacity refreshed,
// link order synced to the document ordinal); unknown names create new
// sections. Questions are matched by ordinal position within their
// section: the question linked at position i is overwritten with the
// document's i-th question, extra positions are unlinked (question rows
// preserved), and missing positions create new questions. Exam-linked
// sections absent from the document are unlinked, not deleted.
//
// Any failure rolls back the whole operation, leaving the exam exactly
// as it was.
func (s *Store) ReloadExam(doc model.ExamDocument, examRef string, userID int64) (string, *model.Exam, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, fmt.Errorf("user with ID %d not found", userID)
	}

	exam, err := s.resolveExam(examRef)
	if err != nil {
		return "", nil, err
	}
	if exam == nil {
		return "", nil, fmt.Errorf("exam '%s' not found", examRef)
	}

	if doc.Sections == nil {
		return "", nil, fmt.Errorf("missing or invalid 'sections' field")
	}
	if len(doc.Sections) == 0 {
		return "", nil, fmt.Errorf("exam must have at least one section")
	}

	existingLinks, err := s.ListExamSections(exam.ID)
	if err != nil {
		return "", nil, err
	}
	sectionsByName := make(map[string]model.ExamSection, len(existingLinks))
	for _, link := range existingLinks {
		sec, err := s.GetSection(link.SectionID)
		if err != nil {
			return "", nil, err
		}
		sectionsByName[sec.Name] = link
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	total := 0
	docNames := make(map[string]bool, len(doc.Sections))

	for i, sectionDoc := range doc.Sections {
		sectionOrder := i + 1
		if sectionDoc.Name == "" {
			return "", nil, fmt.Errorf("section %d missing 'name' field", sectionOrder)
		}
		if len(sectionDoc.Questions) == 0 {
			return "", nil, fmt.Errorf("section '%s' must have at least one question", sectionDoc.Name)
		}
		docNames[sectionDoc.Name] = true

		link, exists := sectionsByName[sectionDoc.Name]
		var sectionID int64
		if exists {
			sectionID = link.SectionID
			_, err := tx.Exec(
				`UPDATE sections SET number_of_questions = ? WHERE id = ?`,
				len(sectionDoc.Questions), sectionID,
			)
			if err != nil {
				return "", nil, fmt.Errorf("update section '%s': %w", sectionDoc.Name, err)
			}
			_, err = tx.Exec(
				`UPDATE exam_sections SET "order" = ? WHERE id = ?`,
				sectionOrder, link.ID,
			)
			if err != nil {
				return "", nil, fmt.Errorf("reorder section '%s': %w", sectionDoc.Name, err)
			}
		} else {
			res, err := tx.Exec(
				`INSERT INTO sections (name, number_of_questions) VALUES (?, ?)`,
				sectionDoc.Name, len(sectionDoc.Questions),
			)
			if err != nil {
				return "", nil, fmt.Errorf("create section '%s': %w", sectionDoc.Name, err)
			}
			sectionID, err = res.LastInsertId()
			if err != nil {
				return "", nil, err
			}
			_, err = tx.Exec(
				`INSERT INTO exam_sections (exam_id, section_id, "order") VALUES (?, ?, ?)`,
				exam.ID, sectionID, sectionOrder,
			)
			if err != nil {
				return "", nil, fmt.Errorf("link section '%s' to exam: %w", sectionDoc.Name, err)
			}
		}

		if err := s.reloadSectionQuestions(tx, sectionID, sectionDoc, userID, now); err != nil {
			return "", nil, err
		}
		total += len(sectionDoc.Questions)
	}

	// Unlink exam sections not named by the document. The section rows
	// stay so historical tests keep resolving.
	for name, link := range sectionsByName {
		if docNames[name] {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM exam_sections WHERE id = ?`, link.ID); err != nil {
			return "", nil, fmt.Errorf("unlink section '%s': %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", nil, err
	}

	slog.Info("reloaded exam", "exam_id", exam.ID, "name", exam.Name,
		"sections", len(doc.Sections), "questions", total)
	message := fmt.Sprintf("Successfully reloaded exam '%s' with %d sections and %d questions",
		exam.Name, len(doc.Sections), total)
	return message, exam, nil
}

// reloadSectionQuestions syncs one section's question list to the
// document by ordinal position.
func (s *Store) reloadSectionQuestions(tx *sql.Tx, sectionID int64, sectionDoc model.SectionDocument, userID int64, now time.Time) error {
	rows, err := tx.Query(
		`SELECT id, question_id FROM section_questions
		 WHERE section_id = ? ORDER BY "order", id`, sectionID)
	if err != nil {
		return err
	}
	type qlink struct {
		linkID     int64
		questionID int64
	}
	var existing []qlink
	for rows.Next() {
		var l qlink
		if err := rows.Scan(&l.linkID, &l.questionID); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for j, questionDoc := range sectionDoc.Questions {
		ordinal := j + 1
		if err := validateDocQuestion(questionDoc, sectionDoc.Name, ordinal); err != nil {
			return err
		}
		if j < len(existing) {
			// Positional match: overwrite the linked question in place.
			_, err := tx.Exec(
				`UPDATE questions SET question_text = ?, question_image = ?,
				 question_audio = ?, answer_1 = ?, answer_2 = ?, answer_3 = ?,
				 answer_4 = ?, correct_answer = ?, explanation = ?, updated_at = ?
				 WHERE id = ?`,
				questionDoc.QuestionText, questionDoc.QuestionImage, questionDoc.QuestionAudio,
				questionDoc.Answer1, questionDoc.Answer2, questionDoc.Answer3,
				questionDoc.Answer4, *questionDoc.CorrectAnswer,
				questionDoc.EncodedExplanation(), now, existing[j].questionID,
			)
			if err != nil {
				return fmt.Errorf("update question %d in section '%s': %w", ordinal, sectionDoc.Name, err)
			}
			_, err = tx.Exec(
				`UPDATE section_questions SET "order" = ? WHERE id = ?`,
				ordinal, existing[j].linkID,
			)
			if err != nil {
				return fmt.Errorf("reorder question %d in section '%s': %w", ordinal, sectionDoc.Name, err)
			}
			continue
		}
		questionID, err := insertDocQuestion(tx, questionDoc, sectionDoc.Name, ordinal, userID, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO section_questions (section_id, question_id, "order") VALUES (?, ?, ?)`,
			sectionID, questionID, ordinal,
		)
		if err != nil {
			return fmt.Errorf("link question %d in section '%s': %w", ordinal, sectionDoc.Name, err)
		}
	}

	// Positions past the document's new length: unlink only. The
	// question rows stay because historical test answers reference them.
	for _, l := range existing[min(len(sectionDoc.Questions), len(existing)):] {
		if _, err := tx.Exec(`DELETE FROM section_questions WHERE id = ?`, l.linkID); err != nil {
			return fmt.Errorf("unlink question from section '%s': %w", sectionDoc.Name, err)
		}
	}
	return nil
}

// resolveExam looks an exam up by numeric ID when ref parses as one,
// otherwise by name. Returns nil when no exam matches.
func (s *Store) resolveExam(ref string) (*model.Exam, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		exam, err := s.GetExam(id)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &exam, nil
	}
	return s.GetExamByName(ref)
}
