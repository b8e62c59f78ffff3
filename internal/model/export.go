package model

import "time"

// ResultsExport is the top-level JSON structure for test-result export.
type ResultsExport struct {
	ExportedAt time.Time      `json:"exported_at"`
	TestCount  int            `json:"test_count"`
	Results    []ResultExport `json:"results"`
}

// ResultExport holds one completed test for export.
type ResultExport struct {
	TestID      int64          `json:"test_id"`
	UserEmail   string         `json:"user_email"`
	ExamName    string         `json:"exam_name"`
	ExamKind    ExamKind       `json:"exam_kind"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Correct     int            `json:"correct"`
	Total       int            `json:"total"`
	Percentage  float64        `json:"percentage"`
	Answers     []AnswerExport `json:"answers"`
}

// AnswerExport holds one answered question for export.
type AnswerExport struct {
	QuestionText   string `json:"question_text"`
	SectionName    string `json:"section_name"`
	SelectedAnswer *int   `json:"selected_answer,omitempty"`
	CorrectAnswer  int    `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
}
