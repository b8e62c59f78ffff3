package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocale(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "ExamHub" {
		t.Errorf("T(AppTitle) = %q, want 'ExamHub'", got)
	}

	got = T(ctx, "LanguageChanged")
	if got != "Language updated." {
		t.Errorf("T(LanguageChanged) = %q, want 'Language updated.'", got)
	}
}

func TestTranslateSpanish(t *testing.T) {
	ctx := initLang(t, "es")

	got := T(ctx, "LanguageChanged")
	if got != "Idioma actualizado." {
		t.Errorf("T(LanguageChanged) = %q, want 'Idioma actualizado.'", got)
	}

	got = T(ctx, "SelectAtLeastOne")
	if got != "Por favor selecciona al menos una sección con preguntas." {
		t.Errorf("T(SelectAtLeastOne) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsAvailable", 1)
	if got1 != "1 question available." {
		t.Errorf("Tp(QuestionsAvailable, 1) = %q, want '1 question available.'", got1)
	}

	got5 := Tp(ctx, "QuestionsAvailable", 5)
	if got5 != "5 questions available." {
		t.Errorf("Tp(QuestionsAvailable, 5) = %q, want '5 questions available.'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "TestCompleted", map[string]any{"Correct": 7, "Total": 10})
	if got != "Test completed: 7 of 10 correct." {
		t.Errorf("Td(TestCompleted) = %q, want 'Test completed: 7 of 10 correct.'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLangFromContext(t *testing.T) {
	ctx := initLang(t, "en")
	if got := LangFromContext(ctx); got != "en" {
		t.Errorf("LangFromContext = %q, want 'en'", got)
	}
	if got := LangFromContext(context.Background()); got != "es" {
		t.Errorf("LangFromContext(empty) = %q, want 'es' default", got)
	}
}

func TestMiddlewareLanguageResolution(t *testing.T) {
	if err := Init("es"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	tests := []struct {
		name   string
		cookie string
		accept string
		want   string
	}{
		{"default is spanish", "", "", "es"},
		{"cookie wins", "en", "es", "en"},
		{"unsupported cookie falls through", "fr", "en-US,en;q=0.9", "en"},
		{"accept-language matched", "", "en-GB,en;q=0.8", "en"},
		{"unsupported accept falls back", "", "ja-JP", "es"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = LangFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("resolved language = %q, want %q", got, tt.want)
			}
		})
	}
}
