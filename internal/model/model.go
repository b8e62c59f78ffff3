package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a regular test-taking user.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin is an administrative user.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// ExamKind distinguishes author-curated exams from generated snapshots.
type ExamKind string

const (
	// ExamAuthored is an exam curated by a content author or importer.
	ExamAuthored ExamKind = "authored"
	// ExamGenerated is a one-off snapshot built by random selection.
	ExamGenerated ExamKind = "generated"
)

// Question represents a multiple-choice question with four fixed options.
// CorrectAnswer is always in 1..4. Explanation is an opaque text blob,
// either a bare string or a JSON mapping of language codes to strings
// (see explanation.go).
type Question struct {
	ID            int64     `json:"id"`
	QuestionText  string    `json:"question_text"`
	QuestionImage string    `json:"question_image,omitempty"`
	QuestionAudio string    `json:"question_audio,omitempty"`
	Answer1       string    `json:"answer_1"`
	Answer2       string    `json:"answer_2"`
	Answer3       string    `json:"answer_3"`
	Answer4       string    `json:"answer_4"`
	CorrectAnswer int       `json:"correct_answer"`
	Explanation   string    `json:"explanation,omitempty"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Section is a named container of ordered questions. Names are not
// unique: sections sharing a name form one logical pool.
// NumberOfQuestions is the declared capacity, which may differ from the
// actual number of linked questions for author-managed sections.
type Section struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	NumberOfQuestions int    `json:"number_of_questions"`
}

// SectionQuestion links a question into a section at a 1-based order.
type SectionQuestion struct {
	ID         int64 `json:"id"`
	SectionID  int64 `json:"section_id"`
	QuestionID int64 `json:"question_id"`
	Order      int   `json:"order"`
}

// Exam is an ordered sequence of sections.
type Exam struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      ExamKind  `json:"kind"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ExamSection links a section into an exam at a 1-based order.
type ExamSection struct {
	ID        int64 `json:"id"`
	ExamID    int64 `json:"exam_id"`
	SectionID int64 `json:"section_id"`
	Order     int   `json:"order"`
}

// Test is one user's attempt against one exam. CompletedAt is nil while
// the attempt is in progress; at most one incomplete test exists per
// (user, exam) pair.
type Test struct {
	ID          int64      `json:"id"`
	ExamID      int64      `json:"exam_id"`
	UserID      int64      `json:"user_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TestAnswer records a user's selected option for one question within a
// test. SelectedAnswer is nil until the user picks an option; there is
// at most one row per (test, question) pair.
type TestAnswer struct {
	ID             int64     `json:"id"`
	TestID         int64     `json:"test_id"`
	UserID         int64     `json:"user_id"`
	QuestionID     int64     `json:"question_id"`
	SelectedAnswer *int      `json:"selected_answer,omitempty"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// PoolRequest asks for count questions from the named pool. The slice
// order of requests becomes the section order of the generated exam.
type PoolRequest struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Pool is the deduplicated set of questions reachable from all sections
// sharing one display name.
type Pool struct {
	Name        string  `json:"name"`
	SectionIDs  []int64 `json:"section_ids"`
	QuestionIDs []int64 `json:"question_ids"`
	Count       int     `json:"count"`
}

// TestQuestion pairs a question with the section it appears under, in
// exam order.
type TestQuestion struct {
	SectionName string   `json:"section_name"`
	Question    Question `json:"question"`
}

// QuestionResult is one scored question in a completed test.
type QuestionResult struct {
	Question       Question `json:"question"`
	SelectedAnswer *int     `json:"selected_answer,omitempty"`
	IsCorrect      bool     `json:"is_correct"`
	Explanation    string   `json:"explanation,omitempty"`
}

// TestResult is the scored view of a completed test.
type TestResult struct {
	Test       Test             `json:"test"`
	ExamName   string           `json:"exam_name"`
	Results    []QuestionResult `json:"results"`
	Correct    int              `json:"correct"`
	Total      int              `json:"total"`
	Percentage float64          `json:"percentage"`
}

// ServerConfig holds runtime options that affect request handling.
type ServerConfig struct {
	SecureCookies bool // Set Secure flag on cookies (disable for local dev)
}

// TestSummary is one row of a user's exam history.
type TestSummary struct {
	Test           Test      `json:"test"`
	ExamName       string    `json:"exam_name"`
	TotalQuestions int       `json:"total_questions"`
	Correct        int       `json:"correct"`
	Percentage     float64   `json:"percentage"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}
