package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-ledger/internal/dialogue"
)

type stubCategories struct {
	names []string
	err   error
	calls int
}

func (s *stubCategories) CategoryNames(ctx context.Context) ([]string, error) {
	s.calls++
	return s.names, s.err
}

func TestGeminiExtractor_Extract(t *testing.T) {
	var gotPrompt string
	gen := func(ctx context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "```json\n{\"item\": \"Coxinha\", \"amount\": 8.5, \"category\": \"  food \", \"unrelated\": 1}\n```", nil
	}
	e := newExtractor(gen, &stubCategories{names: []string{"Food", "Purchase"}}, zerolog.Nop())

	ex, err := e.Extract(context.Background(), "comprei uma coxinha por oito e cinquenta", dialogue.PartialExpense{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if ex.Item == nil || *ex.Item != "Coxinha" {
		t.Errorf("Item = %v", ex.Item)
	}
	if ex.Amount == nil || ex.Amount.String() != "8.5" {
		t.Errorf("Amount = %v", ex.Amount)
	}
	if ex.Category == nil || *ex.Category != "Food" {
		t.Errorf("Category = %v, want canonical spelling", ex.Category)
	}
	if !strings.Contains(gotPrompt, "comprei uma coxinha") || !strings.Contains(gotPrompt, "  - Food") {
		t.Errorf("prompt missing utterance or taxonomy:\n%s", gotPrompt)
	}
}

func TestGeminiExtractor_MalformedOutputIsNoInformation(t *testing.T) {
	for _, raw := range []string{"not json at all", "[1, 2]", "null"} {
		t.Run(raw, func(t *testing.T) {
			gen := func(ctx context.Context, prompt string) (string, error) { return raw, nil }
			e := newExtractor(gen, nil, zerolog.Nop())

			ex, err := e.Extract(context.Background(), "hello", dialogue.PartialExpense{})
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if !ex.Empty() {
				t.Errorf("expected empty extraction, got %+v", ex)
			}
		})
	}
}

func TestGeminiExtractor_ModelErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  generateFunc
	}{
		{"transport error", func(ctx context.Context, prompt string) (string, error) { return "", errors.New("quota") }},
		{"empty response", func(ctx context.Context, prompt string) (string, error) { return "", nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newExtractor(tt.gen, nil, zerolog.Nop())
			if _, err := e.Extract(context.Background(), "x", dialogue.PartialExpense{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGeminiExtractor_TaxonomyCache(t *testing.T) {
	src := &stubCategories{names: []string{"Food"}}
	gen := func(ctx context.Context, prompt string) (string, error) { return "{}", nil }
	e := newExtractor(gen, src, zerolog.Nop())

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if _, err := e.Extract(context.Background(), "x", dialogue.PartialExpense{}); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Errorf("categories loaded %d times, want 1", src.calls)
	}

	clock = clock.Add(categoryCacheTTL + time.Second)
	src.err = errors.New("bigquery down")
	if got := e.taxonomyFor(context.Background()); len(got) != 1 || got[0] != "Food" {
		t.Errorf("stale taxonomy should be kept on reload failure, got %v", got)
	}
	if src.calls != 2 {
		t.Errorf("expected a reload attempt, calls = %d", src.calls)
	}
}

func TestGeminiExtractor_DefaultTaxonomyOnFailure(t *testing.T) {
	e := newExtractor(nil, &stubCategories{err: errors.New("boom")}, zerolog.Nop())
	if got := e.taxonomyFor(context.Background()); len(got) != len(DefaultCategories) {
		t.Errorf("expected default categories, got %v", got)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}```", `{"a":1}`},
		{"Sure! Here you go: {\"a\":1} Hope it helps", `{"a":1}`},
		{"  \n{\"a\":{\"b\":2}}\n ", `{"a":{"b":2}}`},
	}

	for _, tt := range tests {
		if got := cleanModelJSON(tt.in); got != tt.want {
			t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildPrompt_IncludesState(t *testing.T) {
	state := dialogue.PartialExpense{Item: dialogue.Ptr("Coxinha"), Status: dialogue.StatusCollecting}
	prompt := BuildPrompt("oito reais", state, DefaultCategories)

	for _, want := range []string{`"item":"Coxinha"`, `User said: "oito reais"`, "purchaseLocation", "cancelRequested"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestCategoryCanonicalizer(t *testing.T) {
	c := NewCategoryCanonicalizer([]string{"Food", " Health Care ", ""})

	tests := []struct {
		in    string
		want  string
		known bool
	}{
		{"food", "Food", true},
		{"FOOD  ", "Food", true},
		{"health   care", "Health Care", true},
		{" Pets ", "Pets", false},
	}
	for _, tt := range tests {
		got, known := c.Canonical(tt.in)
		if got != tt.want || known != tt.known {
			t.Errorf("Canonical(%q) = %q, %v; want %q, %v", tt.in, got, known, tt.want, tt.known)
		}
	}
}
