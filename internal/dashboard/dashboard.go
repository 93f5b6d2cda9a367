// Package dashboard summarizes a ledger: the total spent, the totals per
// category and the most recent entries.
package dashboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// DefaultRecent is the number of recent entries shown when none is requested.
const DefaultRecent = 5

// CategoryTotal is the amount spent in one display category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Summary is the dashboard view of a ledger.
type Summary struct {
	Total      decimal.Decimal           `json:"total"`
	Count      int                       `json:"count"`
	ByCategory []CategoryTotal           `json:"by_category"`
	Recent     []domain.FinalizedExpense `json:"recent"`
}

// Summarize aggregates expenses, which are expected in ledger order (oldest
// first). Categories are sorted by total descending, then by name. Recent holds
// the last recentN entries, newest first.
func Summarize(expenses []domain.FinalizedExpense, recentN int) Summary {
	s := Summary{
		Total:      decimal.Zero,
		ByCategory: []CategoryTotal{},
		Recent:     []domain.FinalizedExpense{},
	}

	index := make(map[string]int)
	for _, e := range expenses {
		s.Total = s.Total.Add(e.Amount)
		s.Count++

		name := e.DisplayCategory
		if name == "" {
			name = e.Category
		}
		i, ok := index[name]
		if !ok {
			i = len(s.ByCategory)
			index[name] = i
			s.ByCategory = append(s.ByCategory, CategoryTotal{Category: name, Total: decimal.Zero})
		}
		s.ByCategory[i].Total = s.ByCategory[i].Total.Add(e.Amount)
		s.ByCategory[i].Count++
	}

	sort.SliceStable(s.ByCategory, func(i, j int) bool {
		if c := s.ByCategory[i].Total.Cmp(s.ByCategory[j].Total); c != 0 {
			return c > 0
		}
		return s.ByCategory[i].Category < s.ByCategory[j].Category
	})

	if recentN < 0 {
		recentN = 0
	}
	for i := len(expenses) - 1; i >= 0 && len(s.Recent) < recentN; i-- {
		s.Recent = append(s.Recent, expenses[i])
	}

	return s
}

// Service builds summaries from a ledger reader.
type Service struct {
	reader ledger.Reader
}

// NewService creates a dashboard service.
func NewService(reader ledger.Reader) *Service {
	return &Service{reader: reader}
}

// Summary reads the ledger selected by ctx and summarizes it.
func (s *Service) Summary(ctx context.Context, recentN int) (Summary, error) {
	expenses, err := s.reader.ListExpenses(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("Summary: %w", err)
	}
	return Summarize(expenses, recentN), nil
}
