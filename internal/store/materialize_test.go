package store

import (
	"strings"
	"testing"

	"github.com/nihongo-uy/examhub/internal/model"
)

func TestSampleQuestions(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5}

	got := sampleQuestions(ids, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 IDs, got %d", len(got))
	}
	seen := make(map[int64]bool)
	for _, id := range got {
		if seen[id] {
			t.Fatalf("duplicate ID %d in sample", id)
		}
		seen[id] = true
		found := false
		for _, orig := range ids {
			if orig == id {
				found = true
			}
		}
		if !found {
			t.Fatalf("sampled ID %d not in input", id)
		}
	}

	// Requesting more than available clamps to the pool size.
	got = sampleQuestions(ids, 100)
	if len(got) != len(ids) {
		t.Errorf("expected clamp to %d, got %d", len(ids), len(got))
	}

	// Input must not be reordered.
	for i, id := range ids {
		if id != int64(i+1) {
			t.Fatalf("input slice was modified: %v", ids)
		}
	}
}

func TestCreateRandomExam(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	newSectionWithQuestions(t, s, userID, "Vocabulary", 5)
	newSectionWithQuestions(t, s, userID, "Grammar", 3)

	examID, testID, total, err := s.CreateRandomExam(userID, []model.PoolRequest{
		{Name: "Vocabulary", Count: 3},
		{Name: "Grammar", Count: 2},
	})
	if err != nil {
		t.Fatalf("CreateRandomExam: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}

	exam, err := s.GetExam(examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if exam.Kind != model.ExamGenerated {
		t.Errorf("Kind = %q, want %q", exam.Kind, model.ExamGenerated)
	}
	if !strings.HasPrefix(exam.Name, "Random Practice Exam - ") {
		t.Errorf("Name = %q", exam.Name)
	}

	// The snapshot sections mirror the request order.
	questions, err := s.ExamQuestions(examID)
	if err != nil {
		t.Fatalf("ExamQuestions: %v", err)
	}
	if len(questions) != 5 {
		t.Fatalf("expected 5 exam questions, got %d", len(questions))
	}
	for i := 0; i < 3; i++ {
		if questions[i].SectionName != "Vocabulary" {
			t.Errorf("question %d section = %q, want Vocabulary", i, questions[i].SectionName)
		}
	}
	for i := 3; i < 5; i++ {
		if questions[i].SectionName != "Grammar" {
			t.Errorf("question %d section = %q, want Grammar", i, questions[i].SectionName)
		}
	}

	// No duplicate questions in the snapshot.
	seen := make(map[int64]bool)
	for _, tq := range questions {
		if seen[tq.Question.ID] {
			t.Errorf("question %d appears twice", tq.Question.ID)
		}
		seen[tq.Question.ID] = true
	}

	// A test was auto-started against the snapshot.
	test, err := s.GetTest(testID)
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}
	if test.ExamID != examID || test.UserID != userID {
		t.Errorf("test = %+v", test)
	}
	if test.CompletedAt != nil {
		t.Error("auto-started test must be incomplete")
	}
}

func TestCreateRandomExamClampsOversizedRequest(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	newSectionWithQuestions(t, s, userID, "Vocabulary", 2)

	_, _, total, err := s.CreateRandomExam(userID, []model.PoolRequest{
		{Name: "Vocabulary", Count: 50},
	})
	if err != nil {
		t.Fatalf("CreateRandomExam: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestCreateRandomExamSkipsEmptyPools(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	newSectionWithQuestions(t, s, userID, "Vocabulary", 2)

	// Unknown pool and zero count are skipped silently.
	_, _, total, err := s.CreateRandomExam(userID, []model.PoolRequest{
		{Name: "Nope", Count: 3},
		{Name: "Vocabulary", Count: 0},
		{Name: "Vocabulary", Count: 2},
	})
	if err != nil {
		t.Fatalf("CreateRandomExam: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestCreateRandomExamRejectsEmptySelection(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")

	tests := []struct {
		name     string
		requests []model.PoolRequest
	}{
		{"no requests", nil},
		{"all zero counts", []model.PoolRequest{{Name: "Vocabulary", Count: 0}}},
		{"all pools unknown", []model.PoolRequest{{Name: "Nope", Count: 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := s.CreateRandomExam(userID, tt.requests)
			if err != ErrEmptyRequest {
				t.Fatalf("expected ErrEmptyRequest, got %v", err)
			}
		})
	}

	// Nothing was persisted by the rejected attempts.
	exams, err := s.ListExams()
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(exams) != 0 {
		t.Errorf("rejected requests must not persist exams, got %d", len(exams))
	}
}

func TestCreateRandomExamRollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "student@example.com")
	newSectionWithQuestions(t, s, userID, "Vocabulary", 3)

	// Force the sampler to return an ID no question row has, so the
	// foreign key check fails partway through the transaction.
	orig := sampleFunc
	sampleFunc = func(ids []int64, k int) []int64 { return []int64{99999} }
	defer func() { sampleFunc = orig }()

	_, _, _, err := s.CreateRandomExam(userID, []model.PoolRequest{
		{Name: "Vocabulary", Count: 2},
	})
	if err == nil {
		t.Fatal("expected failure from bogus question IDs")
	}

	exams, err := s.ListExams()
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(exams) != 0 {
		t.Errorf("failed materialization must roll back the exam, got %d", len(exams))
	}
	sections, err := s.ListSections()
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(sections) != 1 {
		t.Errorf("failed materialization must roll back snapshot sections, got %d", len(sections))
	}
}
