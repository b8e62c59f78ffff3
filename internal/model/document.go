package model

import (
	"encoding/json"
	"fmt"
)

// ExamDocument is the JSON exam format accepted by the import and
// reload engines:
//
//	{
//	  "name": "JLPT N5 Practice Test",
//	  "sections": [
//	    {
//	      "name": "Vocabulary",
//	      "questions": [
//	        {
//	          "question_text": "...",
//	          "question_image": "http://example.com/image.jpg",
//	          "question_audio": "http://example.com/audio.mp3",
//	          "answer_1": "...", "answer_2": "...",
//	          "answer_3": "...", "answer_4": "...",
//	          "correct_answer": 1,
//	          "explanation": "..." or {"EN": "...", "ES": "..."}
//	        }
//	      ]
//	    }
//	  ]
//	}
type ExamDocument struct {
	Name     string            `json:"name"`
	Sections []SectionDocument `json:"sections"`
}

// SectionDocument is one section of an ExamDocument.
type SectionDocument struct {
	Name      string             `json:"name"`
	Questions []QuestionDocument `json:"questions"`
}

// QuestionDocument is one question of an ExamDocument. CorrectAnswer is
// a pointer so a missing field is distinguishable from a present zero.
// Explanation is kept raw because it may be a string or a language map.
type QuestionDocument struct {
	QuestionText  string          `json:"question_text"`
	QuestionImage string          `json:"question_image,omitempty"`
	QuestionAudio string          `json:"question_audio,omitempty"`
	Answer1       string          `json:"answer_1"`
	Answer2       string          `json:"answer_2"`
	Answer3       string          `json:"answer_3"`
	Answer4       string          `json:"answer_4"`
	CorrectAnswer *int            `json:"correct_answer"`
	Explanation   json.RawMessage `json:"explanation,omitempty"`
}

// EncodedExplanation returns the question's explanation in the stored
// text form: bare strings pass through, language maps are normalized to
// upper-case keys and re-serialized.
func (q QuestionDocument) EncodedExplanation() string {
	return encodeDocExplanation(q.Explanation)
}

// missingFields lists the required question fields absent from q, in
// the document's canonical field order.
func (q QuestionDocument) missingFields() []string {
	var missing []string
	if q.QuestionText == "" {
		missing = append(missing, "question_text")
	}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"answer_1", q.Answer1},
		{"answer_2", q.Answer2},
		{"answer_3", q.Answer3},
		{"answer_4", q.Answer4},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if q.CorrectAnswer == nil {
		missing = append(missing, "correct_answer")
	}
	return missing
}

// ValidateExamDocument checks the document structure without persisting
// anything and reports every defect found, not just the first. The
// import engine itself fails fast on the first error; this exhaustive
// variant backs the pre-flight validation surface.
func ValidateExamDocument(doc ExamDocument) (bool, []string) {
	var errs []string

	if doc.Name == "" {
		errs = append(errs, "missing required field: 'name'")
	}
	if doc.Sections == nil {
		errs = append(errs, "missing required field: 'sections'")
	} else if len(doc.Sections) == 0 {
		errs = append(errs, "exam must have at least one section")
	}

	for i, section := range doc.Sections {
		ordinal := i + 1
		if section.Name == "" {
			errs = append(errs, fmt.Sprintf("section %d missing 'name' field", ordinal))
		}
		if section.Questions == nil {
			errs = append(errs, fmt.Sprintf("section %d missing 'questions' field", ordinal))
			continue
		}
		if len(section.Questions) == 0 {
			errs = append(errs, fmt.Sprintf("section %d must have at least one question", ordinal))
			continue
		}
		for j, q := range section.Questions {
			qOrdinal := j + 1
			for _, field := range q.missingFields() {
				errs = append(errs, fmt.Sprintf("section %d, question %d missing '%s'", ordinal, qOrdinal, field))
			}
			if q.CorrectAnswer != nil && (*q.CorrectAnswer < 1 || *q.CorrectAnswer > 4) {
				errs = append(errs, fmt.Sprintf("section %d, question %d 'correct_answer' must be 1, 2, 3, or 4", ordinal, qOrdinal))
			}
		}
	}

	return len(errs) == 0, errs
}
