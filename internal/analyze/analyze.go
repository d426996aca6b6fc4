// Package analyze turns the free text of a supplier reply into the structured
// analysis the reconciliation layer stores alongside a quotation. There are two
// implementations: a hosted-model client and a keyword heuristic that also
// serves as the client's fallback.
package analyze

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"padoca/internal"
	"padoca/internal/config"
)

// ItemPrice is one priced line recovered from a reply, matched back to the
// quotation's items by normalized name.
type ItemPrice struct {
	Name      string   `json:"name"`
	UnitPrice *float64 `json:"unitPrice,omitempty"`
	Available *bool    `json:"available,omitempty"`
}

type Result struct {
	Analysis   internal.Analysis `json:"analysis"`
	ItemPrices []ItemPrice       `json:"items,omitempty"`
}

type Analyzer interface {
	Analyze(ctx context.Context, text string, items []internal.QuoteItem) (Result, error)
}

// New picks the analyzer for the current configuration: the hosted model when
// an API key is present, the heuristic otherwise.
func New(cfg config.Config, log *zap.Logger) Analyzer {
	if strings.TrimSpace(cfg.AnalyzerAPIKey) == "" {
		return Heuristic{}
	}
	return NewClient(cfg, log)
}
