// Package extractor turns a free-text utterance into a dialogue.Extraction using
// a language model.
package extractor

import (
	"context"

	"github.com/dvloznov/voice-ledger/internal/dialogue"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// DefaultCategories is the taxonomy offered to the model when no CategorySource
// is configured or it cannot be read.
var DefaultCategories = []string{
	"Purchase",
	"Food",
	"Snack",
	"Transport",
	"Housing",
	"Health",
	"Leisure",
	"Education",
	"Bills",
}

// Extractor guesses expense fields from one utterance given the fields collected so far.
type Extractor interface {
	Extract(ctx context.Context, utterance string, state dialogue.PartialExpense) (dialogue.Extraction, error)
}

// CategorySource supplies the active category names.
type CategorySource interface {
	CategoryNames(ctx context.Context) ([]string, error)
}

// MockExtractor is a test double for Extractor.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, utterance string, state dialogue.PartialExpense) (dialogue.Extraction, error)
}

// Extract implements Extractor.
func (m *MockExtractor) Extract(ctx context.Context, utterance string, state dialogue.PartialExpense) (dialogue.Extraction, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, utterance, state)
	}
	return dialogue.Extraction{}, nil
}
