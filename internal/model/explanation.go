package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// Explanations are stored as a single text field holding either a bare
// string (implicitly English) or a JSON object mapping upper-case
// language codes to localized strings, e.g. {"EN": "...", "ES": "..."}.

// GetExplanation returns the explanation in the requested language,
// falling back to English, then to the first available translation.
// A bare-string explanation is returned unchanged regardless of the
// requested language.
func GetExplanation(field, lang string) string {
	if field == "" {
		return ""
	}
	lang = strings.ToUpper(lang)

	var m map[string]string
	if err := json.Unmarshal([]byte(field), &m); err != nil {
		// Not a JSON object, treat as a plain string.
		return field
	}
	if s, ok := m[lang]; ok {
		return s
	}
	if s, ok := m["EN"]; ok {
		return s
	}
	// First available, by sorted key so the fallback is deterministic.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return m[keys[0]]
}

// SetExplanation encodes English and optional Spanish explanations into
// the stored form.
func SetExplanation(en, es string) string {
	m := map[string]string{"EN": en}
	if es != "" {
		m["ES"] = es
	}
	data, err := json.Marshal(m)
	if err != nil {
		return en
	}
	return string(data)
}

// ParseExplanation decodes the stored form into a language map. Bare
// strings become {"EN": field}.
func ParseExplanation(field string) map[string]string {
	if field == "" {
		return map[string]string{"EN": ""}
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(field), &m); err != nil || m == nil {
		return map[string]string{"EN": field}
	}
	return m
}

// encodeDocExplanation serializes an import document's explanation
// field, which may arrive as a bare string or a language map.
func encodeDocExplanation(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err == nil {
		upper := make(map[string]string, len(m))
		for k, v := range m {
			upper[strings.ToUpper(k)] = v
		}
		data, err := json.Marshal(upper)
		if err == nil {
			return string(data)
		}
	}
	return string(raw)
}
