package model

import (
	"encoding/json"
	"testing"
)

func validDocQuestion(text string) QuestionDocument {
	one := 1
	return QuestionDocument{
		QuestionText:  text,
		Answer1:       "a",
		Answer2:       "b",
		Answer3:       "c",
		Answer4:       "d",
		CorrectAnswer: &one,
	}
}

func TestValidateExamDocumentValid(t *testing.T) {
	doc := ExamDocument{
		Name: "N5",
		Sections: []SectionDocument{
			{Name: "Vocabulary", Questions: []QuestionDocument{validDocQuestion("q1")}},
		},
	}
	valid, errs := ValidateExamDocument(doc)
	if !valid || len(errs) != 0 {
		t.Fatalf("expected valid, got %v", errs)
	}
}

func TestValidateExamDocumentCollectsAllErrors(t *testing.T) {
	bad := validDocQuestion("")
	bad.Answer2 = ""
	seven := 7
	outOfRange := validDocQuestion("q")
	outOfRange.CorrectAnswer = &seven

	doc := ExamDocument{
		Sections: []SectionDocument{
			{Questions: []QuestionDocument{bad}},
			{Name: "Grammar", Questions: []QuestionDocument{outOfRange}},
			{Name: "Reading"},
		},
	}

	valid, errs := ValidateExamDocument(doc)
	if valid {
		t.Fatal("expected invalid")
	}

	want := []string{
		"missing required field: 'name'",
		"section 1 missing 'name' field",
		"section 1, question 1 missing 'question_text'",
		"section 1, question 1 missing 'answer_2'",
		"section 2, question 1 'correct_answer' must be 1, 2, 3, or 4",
		"section 3 missing 'questions' field",
	}
	got := make(map[string]bool, len(errs))
	for _, e := range errs {
		got[e] = true
	}
	for _, w := range want {
		if !got[w] {
			t.Errorf("missing error %q in %v", w, errs)
		}
	}
	if len(errs) != len(want) {
		t.Errorf("expected %d errors, got %d: %v", len(want), len(errs), errs)
	}
}

func TestValidateExamDocumentNilSections(t *testing.T) {
	valid, errs := ValidateExamDocument(ExamDocument{Name: "N5"})
	if valid {
		t.Fatal("expected invalid")
	}
	if len(errs) != 1 || errs[0] != "missing required field: 'sections'" {
		t.Errorf("errs = %v", errs)
	}
}

func TestQuestionDocumentDistinguishesMissingCorrectAnswer(t *testing.T) {
	var q QuestionDocument
	if err := json.Unmarshal([]byte(`{"question_text": "x", "correct_answer": 0}`), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if q.CorrectAnswer == nil || *q.CorrectAnswer != 0 {
		t.Errorf("present zero should decode as *0, got %v", q.CorrectAnswer)
	}

	var q2 QuestionDocument
	if err := json.Unmarshal([]byte(`{"question_text": "x"}`), &q2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if q2.CorrectAnswer != nil {
		t.Errorf("absent field should decode as nil, got %v", q2.CorrectAnswer)
	}
}

func TestEncodedExplanation(t *testing.T) {
	q := validDocQuestion("q")
	q.Explanation = json.RawMessage(`{"en": "because", "es": "porque"}`)

	stored := q.EncodedExplanation()
	if GetExplanation(stored, "es") != "porque" {
		t.Errorf("stored = %q", stored)
	}
}
