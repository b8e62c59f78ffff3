package model

import (
	"encoding/json"
	"testing"
)

func TestGetExplanationBareString(t *testing.T) {
	got := GetExplanation("plain text explanation", "es")
	if got != "plain text explanation" {
		t.Errorf("got %q", got)
	}
}

func TestGetExplanationLanguageSelection(t *testing.T) {
	field := `{"EN": "english", "ES": "spanish"}`

	tests := []struct {
		lang string
		want string
	}{
		{"EN", "english"},
		{"en", "english"},
		{"ES", "spanish"},
		{"es", "spanish"},
		{"fr", "english"}, // falls back to English
	}
	for _, tt := range tests {
		if got := GetExplanation(field, tt.lang); got != tt.want {
			t.Errorf("GetExplanation(%q) = %q, want %q", tt.lang, got, tt.want)
		}
	}
}

func TestGetExplanationFallbackWithoutEnglish(t *testing.T) {
	field := `{"ES": "spanish", "JA": "japanese"}`
	// No EN entry: the first translation by sorted key wins.
	if got := GetExplanation(field, "fr"); got != "spanish" {
		t.Errorf("got %q, want spanish", got)
	}
}

func TestGetExplanationEmpty(t *testing.T) {
	if got := GetExplanation("", "en"); got != "" {
		t.Errorf("got %q", got)
	}
	if got := GetExplanation("{}", "en"); got != "" {
		t.Errorf("got %q for empty map", got)
	}
}

func TestSetExplanation(t *testing.T) {
	field := SetExplanation("english", "spanish")
	if got := GetExplanation(field, "en"); got != "english" {
		t.Errorf("en = %q", got)
	}
	if got := GetExplanation(field, "es"); got != "spanish" {
		t.Errorf("es = %q", got)
	}

	// Without Spanish, only EN is stored.
	field = SetExplanation("english", "")
	m := ParseExplanation(field)
	if len(m) != 1 || m["EN"] != "english" {
		t.Errorf("parsed = %v", m)
	}
}

func TestEncodeDocExplanation(t *testing.T) {
	// Bare JSON strings pass through unquoted.
	got := encodeDocExplanation(json.RawMessage(`"just text"`))
	if got != "just text" {
		t.Errorf("got %q", got)
	}

	// Language maps are normalized to upper-case keys.
	got = encodeDocExplanation(json.RawMessage(`{"en": "hi", "Es": "hola"}`))
	if GetExplanation(got, "EN") != "hi" || GetExplanation(got, "ES") != "hola" {
		t.Errorf("normalized = %q", got)
	}

	if got := encodeDocExplanation(nil); got != "" {
		t.Errorf("nil = %q", got)
	}
}
