package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nihongo-uy/examhub/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite",
		dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_text TEXT NOT NULL,
		question_image TEXT NOT NULL DEFAULT '',
		question_audio TEXT NOT NULL DEFAULT '',
		answer_1 TEXT NOT NULL,
		answer_2 TEXT NOT NULL,
		answer_3 TEXT NOT NULL,
		answer_4 TEXT NOT NULL,
		correct_answer INTEGER NOT NULL CHECK (correct_answer BETWEEN 1 AND 4),
		explanation TEXT NOT NULL DEFAULT '',
		created_by INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (created_by) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		number_of_questions INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS section_questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		section_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		"order" INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (section_id) REFERENCES sections(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS exams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'authored',
		created_by INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (created_by) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS exam_sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id INTEGER NOT NULL,
		section_id INTEGER NOT NULL,
		"order" INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (exam_id) REFERENCES exams(id),
		FOREIGN KEY (section_id) REFERENCES sections(id)
	);

	CREATE TABLE IF NOT EXISTS tests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		FOREIGN KEY (exam_id) REFERENCES exams(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS test_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		test_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		selected_answer INTEGER,
		answered_at DATETIME NOT NULL,
		UNIQUE (test_id, question_id),
		FOREIGN KEY (test_id) REFERENCES tests(id),
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const questionColumns = `id, question_text, question_image, question_audio,
	answer_1, answer_2, answer_3, answer_4, correct_answer, explanation,
	created_by, created_at, updated_at`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	err := row.Scan(&q.ID, &q.QuestionText, &q.QuestionImage, &q.QuestionAudio,
		&q.Answer1, &q.Answer2, &q.Answer3, &q.Answer4, &q.CorrectAnswer,
		&q.Explanation, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO questions (question_text, question_image, question_audio,
		 answer_1, answer_2, answer_3, answer_4, correct_answer, explanation,
		 created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.QuestionText, q.QuestionImage, q.QuestionAudio,
		q.Answer1, q.Answer2, q.Answer3, q.Answer4, q.CorrectAnswer,
		q.Explanation, q.CreatedBy, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	return scanQuestion(s.db.QueryRow(
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
}

// UpdateQuestion rewrites a question's content fields and refreshes
// updated_at. Ownership is checked by the caller.
func (s *Store) UpdateQuestion(q model.Question) error {
	_, err := s.db.Exec(
		`UPDATE questions SET question_text = ?, question_image = ?,
		 question_audio = ?, answer_1 = ?, answer_2 = ?, answer_3 = ?,
		 answer_4 = ?, correct_answer = ?, explanation = ?, updated_at = ?
		 WHERE id = ?`,
		q.QuestionText, q.QuestionImage, q.QuestionAudio,
		q.Answer1, q.Answer2, q.Answer3, q.Answer4, q.CorrectAnswer,
		q.Explanation, time.Now().UTC(), q.ID,
	)
	return err
}

// ListQuestionsByCreator returns a user's questions, newest first.
func (s *Store) ListQuestionsByCreator(userID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions WHERE created_by = ?
		 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// DeleteQuestion removes a question and its section links. Questions
// referenced by historical test answers are refused, never deleted.
func (s *Store) DeleteQuestion(id int64) error {
	var refs int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM test_answers WHERE question_id = ?`, id,
	).Scan(&refs)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("question %d has recorded test answers and cannot be deleted", id)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM section_questions WHERE question_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM questions WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// CreateSection creates a standalone section.
func (s *Store) CreateSection(sec model.Section) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO sections (name, number_of_questions) VALUES (?, ?)`,
		sec.Name, sec.NumberOfQuestions,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetSection returns a section by ID.
func (s *Store) GetSection(id int64) (model.Section, error) {
	var sec model.Section
	err := s.db.QueryRow(
		`SELECT id, name, number_of_questions FROM sections WHERE id = ?`, id,
	).Scan(&sec.ID, &sec.Name, &sec.NumberOfQuestions)
	return sec, err
}

// UpdateSection updates a section's name and declared capacity.
func (s *Store) UpdateSection(sec model.Section) error {
	_, err := s.db.Exec(
		`UPDATE sections SET name = ?, number_of_questions = ? WHERE id = ?`,
		sec.Name, sec.NumberOfQuestions, sec.ID,
	)
	return err
}

// ListSections returns all sections ordered by name.
func (s *Store) ListSections() ([]model.Section, error) {
	rows, err := s.db.Query(
		`SELECT id, name, number_of_questions FROM sections ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sections []model.Section
	for rows.Next() {
		var sec model.Section
		if err := rows.Scan(&sec.ID, &sec.Name, &sec.NumberOfQuestions); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// DeleteSection removes a section and its question links. Sections that
// belong to an exam with test history are refused.
func (s *Store) DeleteSection(id int64) error {
	var tested int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tests t
		 JOIN exam_sections es ON es.exam_id = t.exam_id
		 WHERE es.section_id = ?`, id,
	).Scan(&tested)
	if err != nil {
		return err
	}
	if tested > 0 {
		return fmt.Errorf("section %d belongs to an exam with test history and cannot be deleted", id)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM section_questions WHERE section_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM exam_sections WHERE section_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sections WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListSectionQuestions returns a section's question links in order.
func (s *Store) ListSectionQuestions(sectionID int64) ([]model.SectionQuestion, error) {
	rows, err := s.db.Query(
		`SELECT id, section_id, question_id, "order" FROM section_questions
		 WHERE section_id = ? ORDER BY "order", id`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []model.SectionQuestion
	for rows.Next() {
		var sq model.SectionQuestion
		if err := rows.Scan(&sq.ID, &sq.SectionID, &sq.QuestionID, &sq.Order); err != nil {
			return nil, err
		}
		links = append(links, sq)
	}
	return links, rows.Err()
}

// AddQuestionToSection appends a question at max(order)+1. Duplicate
// links are rejected.
func (s *Store) AddQuestionToSection(sectionID, questionID int64) (int64, error) {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM section_questions WHERE section_id = ? AND question_id = ?`,
		sectionID, questionID,
	).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, fmt.Errorf("question %d is already in section %d", questionID, sectionID)
	}

	var maxOrder int
	err = s.db.QueryRow(
		`SELECT COALESCE(MAX("order"), 0) FROM section_questions WHERE section_id = ?`,
		sectionID,
	).Scan(&maxOrder)
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec(
		`INSERT INTO section_questions (section_id, question_id, "order") VALUES (?, ?, ?)`,
		sectionID, questionID, maxOrder+1,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RemoveQuestionFromSection unlinks a question; the question row stays.
func (s *Store) RemoveQuestionFromSection(sectionID, questionID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM section_questions WHERE section_id = ? AND question_id = ?`,
		sectionID, questionID,
	)
	return err
}

// UpdateSectionQuestionOrder moves a link to a new order value.
func (s *Store) UpdateSectionQuestionOrder(linkID int64, order int) error {
	_, err := s.db.Exec(
		`UPDATE section_questions SET "order" = ? WHERE id = ?`, order, linkID)
	return err
}

// CreateExam creates an exam shell with no sections.
func (s *Store) CreateExam(e model.Exam) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO exams (name, kind, created_by, created_at) VALUES (?, ?, ?, ?)`,
		e.Name, e.Kind, e.CreatedBy, time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(id int64) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRow(
		`SELECT id, name, kind, created_by, created_at FROM exams WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.Kind, &e.CreatedBy, &e.CreatedAt)
	return e, err
}

// GetExamByName returns the first exam with the given name.
func (s *Store) GetExamByName(name string) (*model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRow(
		`SELECT id, name, kind, created_by, created_at FROM exams WHERE name = ? ORDER BY id LIMIT 1`,
		name,
	).Scan(&e.ID, &e.Name, &e.Kind, &e.CreatedBy, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateExamName renames an exam.
func (s *Store) UpdateExamName(id int64, name string) error {
	_, err := s.db.Exec(`UPDATE exams SET name = ? WHERE id = ?`, name, id)
	return err
}

// ListExams returns all exams ordered by creation, newest first.
func (s *Store) ListExams() ([]model.Exam, error) {
	return s.listExams(`SELECT id, name, kind, created_by, created_at FROM exams
		ORDER BY created_at DESC, id DESC`)
}

// ListExamsByCreator returns a user's exams, newest first.
func (s *Store) ListExamsByCreator(userID int64) ([]model.Exam, error) {
	return s.listExams(`SELECT id, name, kind, created_by, created_at FROM exams
		WHERE created_by = ? ORDER BY created_at DESC, id DESC`, userID)
}

func (s *Store) listExams(query string, args ...any) ([]model.Exam, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Name, &e.Kind, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// DeleteExam removes an exam and its section links. Exams with test
// history are refused.
func (s *Store) DeleteExam(id int64) error {
	var tested int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tests WHERE exam_id = ?`, id).Scan(&tested)
	if err != nil {
		return err
	}
	if tested > 0 {
		return fmt.Errorf("exam %d has test history and cannot be deleted", id)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM exam_sections WHERE exam_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM exams WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListExamSections returns an exam's section links in order.
func (s *Store) ListExamSections(examID int64) ([]model.ExamSection, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, section_id, "order" FROM exam_sections
		 WHERE exam_id = ? ORDER BY "order", id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []model.ExamSection
	for rows.Next() {
		var es model.ExamSection
		if err := rows.Scan(&es.ID, &es.ExamID, &es.SectionID, &es.Order); err != nil {
			return nil, err
		}
		links = append(links, es)
	}
	return links, rows.Err()
}

// AddSectionToExam appends a section at max(order)+1. Duplicate links
// are rejected.
func (s *Store) AddSectionToExam(examID, sectionID int64) (int64, error) {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM exam_sections WHERE exam_id = ? AND section_id = ?`,
		examID, sectionID,
	).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, fmt.Errorf("section %d is already in exam %d", sectionID, examID)
	}

	var maxOrder int
	err = s.db.QueryRow(
		`SELECT COALESCE(MAX("order"), 0) FROM exam_sections WHERE exam_id = ?`,
		examID,
	).Scan(&maxOrder)
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec(
		`INSERT INTO exam_sections (exam_id, section_id, "order") VALUES (?, ?, ?)`,
		examID, sectionID, maxOrder+1,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RemoveSectionFromExam unlinks a section; the section row stays.
func (s *Store) RemoveSectionFromExam(examID, sectionID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM exam_sections WHERE exam_id = ? AND section_id = ?`,
		examID, sectionID,
	)
	return err
}

// UpdateExamSectionOrder moves a link to a new order value.
func (s *Store) UpdateExamSectionOrder(linkID int64, order int) error {
	_, err := s.db.Exec(
		`UPDATE exam_sections SET "order" = ? WHERE id = ?`, order, linkID)
	return err
}

// ExamQuestions returns every question of an exam in section order then
// question order, tagged with its section name.
func (s *Store) ExamQuestions(examID int64) ([]model.TestQuestion, error) {
	rows, err := s.db.Query(
		`SELECT sec.name, `+qualifiedQuestionColumns+`
		 FROM exam_sections es
		 JOIN sections sec ON sec.id = es.section_id
		 JOIN section_questions sq ON sq.section_id = es.section_id
		 JOIN questions q ON q.id = sq.question_id
		 WHERE es.exam_id = ?
		 ORDER BY es."order", es.id, sq."order", sq.id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.TestQuestion
	for rows.Next() {
		var tq model.TestQuestion
		q := &tq.Question
		err := rows.Scan(&tq.SectionName, &q.ID, &q.QuestionText, &q.QuestionImage,
			&q.QuestionAudio, &q.Answer1, &q.Answer2, &q.Answer3, &q.Answer4,
			&q.CorrectAnswer, &q.Explanation, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
		if err != nil {
			return nil, err
		}
		questions = append(questions, tq)
	}
	return questions, rows.Err()
}

const qualifiedQuestionColumns = `q.id, q.question_text, q.question_image,
	q.question_audio, q.answer_1, q.answer_2, q.answer_3, q.answer_4,
	q.correct_answer, q.explanation, q.created_by, q.created_at, q.updated_at`
