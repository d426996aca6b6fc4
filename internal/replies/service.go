package replies

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"padoca/internal"
	"padoca/internal/analyze"
	"padoca/internal/quote"
	"padoca/internal/storage"
	"padoca/internal/util"
)

// Service turns fetched raw replies into quotation updates: extract, analyze,
// locate the quotation the supplier is answering, sync the document.
type Service struct {
	db       *storage.DB
	analyzer analyze.Analyzer
	log      *zap.Logger
}

func NewService(db *storage.DB, analyzer analyze.Analyzer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, analyzer: analyzer, log: log}
}

type ProcessResult struct {
	ReplyID     int
	QuotationID string
	Matched     bool
	HasQuote    bool
}

// ProcessPending works through fetched replies oldest first. A reply that
// fails stays in its current status and does not block the rest of the batch.
func (s *Service) ProcessPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.db.ListRepliesByStatus("fetched", limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, row := range pending {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		res, err := s.ProcessReply(ctx, row)
		if err != nil {
			s.log.Warn("reply processing failed",
				zap.Int("replyId", row.ID),
				zap.String("sender", row.Sender),
				zap.Error(err),
			)
			continue
		}
		if res.Matched {
			processed++
		}
	}
	return processed, nil
}

func (s *Service) ProcessReply(ctx context.Context, row internal.ReplyRow) (ProcessResult, error) {
	raw, err := os.ReadFile(row.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	extraction, err := ExtractReply(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	docs, err := s.db.QuotationDocs()
	if err != nil {
		return ProcessResult{}, err
	}
	quotes := quote.FromRawAll(docs)

	target := pickTarget(quotes, row.Sender, extraction)
	if target == nil {
		if err := s.db.UpdateReplyStatus(row.ID, "unmatched"); err != nil {
			return ProcessResult{}, err
		}
		s.log.Info("reply had no matching quotation", zap.String("sender", row.Sender), zap.String("subject", row.Subject))
		return ProcessResult{ReplyID: row.ID}, nil
	}

	result, err := s.analyzer.Analyze(ctx, extraction.Text, target.Items)
	if err != nil {
		return ProcessResult{}, err
	}
	mergeExtraction(&result, extraction, target.Items)

	if err := s.db.SyncQuotation(syncID(*target), syncFields(row, extraction, result, *target)); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.UpdateReplyStatus(row.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}

	s.log.Info("reply folded into quotation",
		zap.Int("replyId", row.ID),
		zap.String("quotationId", syncID(*target)),
		zap.Bool("hasQuote", result.Analysis.HasQuote),
	)
	return ProcessResult{
		ReplyID:     row.ID,
		QuotationID: syncID(*target),
		Matched:     true,
		HasQuote:    result.Analysis.HasQuote,
	}, nil
}

// pickTarget chooses the quotation a reply belongs to: active, related sender
// address, then most extracted-line overlap, preferring quotations still
// waiting on their first reply, newest sent last as the tie-break.
func pickTarget(quotes []internal.Quotation, sender string, ex Extraction) *internal.Quotation {
	var best *internal.Quotation
	bestScore := -1
	for i := range quotes {
		q := quotes[i]
		if !quote.IsActive(q) {
			continue
		}
		if !quote.EmailsRelated(q.SupplierEmail, sender) {
			continue
		}

		score := lineOverlap(ex, q.Items) * 4
		if q.ReplyAt == nil {
			score += 2
		}
		if best == nil || score > bestScore || (score == bestScore && q.SentAt.After(best.SentAt)) {
			best = &quotes[i]
			bestScore = score
		}
	}
	return best
}

func lineOverlap(ex Extraction, items []internal.QuoteItem) int {
	count := 0
	for _, it := range items {
		for _, line := range ex.Lines {
			if util.NamesRelated(it.Name, line.Name) {
				count++
				break
			}
		}
	}
	return count
}

// mergeExtraction backfills item prices the analyzer missed from the
// mechanically extracted lines.
func mergeExtraction(result *analyze.Result, ex Extraction, items []internal.QuoteItem) {
	priced := map[string]analyze.ItemPrice{}
	for _, ip := range result.ItemPrices {
		priced[util.NormalizeName(ip.Name)] = ip
	}

	for _, it := range items {
		key := util.NormalizeName(it.Name)
		if existing, ok := priced[key]; ok && existing.UnitPrice != nil {
			continue
		}
		for _, line := range ex.Lines {
			if !util.NamesRelated(it.Name, line.Name) {
				continue
			}
			if line.UnitPrice == nil && line.Available == nil {
				continue
			}
			ip := analyze.ItemPrice{Name: it.Name, UnitPrice: line.UnitPrice, Available: line.Available}
			if prev, ok := priced[key]; ok {
				replaceItemPrice(result, prev.Name, ip)
			} else {
				result.ItemPrices = append(result.ItemPrices, ip)
			}
			priced[key] = ip
			break
		}
	}
}

func replaceItemPrice(result *analyze.Result, name string, ip analyze.ItemPrice) {
	for i := range result.ItemPrices {
		if result.ItemPrices[i].Name == name {
			result.ItemPrices[i] = ip
			return
		}
	}
}

func syncID(q internal.Quotation) string {
	if q.RemoteID != "" {
		return q.RemoteID
	}
	return q.ID
}

// syncFields builds the partial document update. The status only advances to
// the quoted vocabulary when the analysis actually found pricing; a polite
// acknowledgement records the reply text and nothing else.
func syncFields(row internal.ReplyRow, ex Extraction, result analyze.Result, target internal.Quotation) map[string]any {
	fields := map[string]any{
		"reply":   ex.Text,
		"replyAt": replyTimestamp(row),
		"analysis": map[string]any{
			"hasQuote":        result.Analysis.HasQuote,
			"hasProblems":     result.Analysis.HasProblems,
			"paymentTerms":    result.Analysis.PaymentTerms,
			"urgency":         result.Analysis.Urgency,
			"suggestedAction": result.Analysis.SuggestedAction,
		},
	}
	analysis := fields["analysis"].(map[string]any)
	if result.Analysis.TotalQuote != nil {
		analysis["totalQuote"] = *result.Analysis.TotalQuote
		fields["totalQuote"] = *result.Analysis.TotalQuote
	}
	if result.Analysis.DeliveryDays != nil {
		analysis["deliveryDays"] = *result.Analysis.DeliveryDays
	}

	if !result.Analysis.HasQuote {
		return fields
	}

	fields["status"] = "cotado"
	fields["items"] = itemDocs(target.Items, result.ItemPrices)
	return fields
}

func itemDocs(items []internal.QuoteItem, prices []analyze.ItemPrice) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		doc := map[string]any{
			"id":              it.ID,
			"name":            it.Name,
			"unit":            it.Unit,
			"quantityToOrder": it.QuantityToOrder,
		}
		if it.UnitPrice != nil {
			doc["unitPrice"] = *it.UnitPrice
		}
		if it.Available != nil {
			doc["available"] = *it.Available
		}
		for _, ip := range prices {
			if !util.NamesRelated(it.Name, ip.Name) {
				continue
			}
			if ip.UnitPrice != nil {
				doc["unitPrice"] = *ip.UnitPrice
			}
			if ip.Available != nil {
				doc["available"] = *ip.Available
			}
			break
		}
		out = append(out, doc)
	}
	return out
}

func replyTimestamp(row internal.ReplyRow) string {
	if row.ReceivedAt != "" {
		return row.ReceivedAt
	}
	return time.Now().UTC().Format(time.RFC3339)
}
