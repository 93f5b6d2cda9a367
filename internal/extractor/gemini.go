package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/voice-ledger/internal/dialogue"
	"github.com/dvloznov/voice-ledger/internal/metrics"
)

// categoryCacheTTL bounds how long a loaded taxonomy is reused.
const categoryCacheTTL = 10 * time.Minute

// generateFunc sends a prompt to the model and returns its raw text.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// GeminiExtractor is the Extractor backed by a Gemini model.
type GeminiExtractor struct {
	generate   generateFunc
	categories CategorySource
	log        zerolog.Logger

	mu       sync.Mutex
	taxonomy []string
	loadedAt time.Time
	now      func() time.Time
}

// NewGeminiExtractor creates an extractor that calls model with the given API key.
// categories may be nil, in which case DefaultCategories is used.
func NewGeminiExtractor(ctx context.Context, apiKey, model string, categories CategorySource, log zerolog.Logger) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}

	generate := func(ctx context.Context, prompt string) (string, error) {
		contents := []*genai.Content{
			{
				Role:  "user",
				Parts: []*genai.Part{{Text: prompt}},
			},
		}
		cfg := &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0),
		}

		resp, err := client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return resp.Text(), nil
	}

	return newExtractor(generate, categories, log), nil
}

func newExtractor(generate generateFunc, categories CategorySource, log zerolog.Logger) *GeminiExtractor {
	return &GeminiExtractor{
		generate:   generate,
		categories: categories,
		log:        log,
		now:        time.Now,
	}
}

// Extract implements Extractor. The model output is untrusted; anything that does
// not coerce cleanly is dropped rather than reported as an error.
func (e *GeminiExtractor) Extract(ctx context.Context, utterance string, state dialogue.PartialExpense) (dialogue.Extraction, error) {
	taxonomy := e.taxonomyFor(ctx)

	start := time.Now()
	rawText, err := e.generate(ctx, BuildPrompt(utterance, state, taxonomy))
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return dialogue.Extraction{}, fmt.Errorf("Extract: %w", err)
	}
	if rawText == "" {
		return dialogue.Extraction{}, fmt.Errorf("Extract: empty response from model")
	}

	raw, err := decodeObject(cleanModelJSON(rawText))
	if err != nil {
		e.log.Warn().Err(err).Str("raw_response", rawText).Msg("Model returned malformed JSON, treating as no information")
		return dialogue.Extraction{}, nil
	}

	ex := dialogue.CoerceExtraction(raw)
	if ex.Category != nil {
		name, known := NewCategoryCanonicalizer(taxonomy).Canonical(*ex.Category)
		if !known {
			e.log.Debug().Str("category", name).Msg("Category outside taxonomy")
		}
		ex.Category = &name
	}
	return ex, nil
}

// taxonomyFor returns the cached taxonomy, reloading it from the source when stale.
func (e *GeminiExtractor) taxonomyFor(ctx context.Context) []string {
	if e.categories == nil {
		return DefaultCategories
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.taxonomy != nil && e.now().Sub(e.loadedAt) < categoryCacheTTL {
		return e.taxonomy
	}

	names, err := e.categories.CategoryNames(ctx)
	if err != nil || len(names) == 0 {
		e.log.Warn().Err(err).Msg("Could not load categories, using defaults")
		if e.taxonomy != nil {
			return e.taxonomy
		}
		return DefaultCategories
	}

	e.taxonomy = names
	e.loadedAt = e.now()
	return names
}

func decodeObject(s string) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("unmarshal JSON: not an object")
	}
	return raw, nil
}

// Ensure GeminiExtractor implements Extractor.
var _ Extractor = (*GeminiExtractor)(nil)
