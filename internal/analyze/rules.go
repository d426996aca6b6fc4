package analyze

import (
	"context"
	"regexp"
	"strings"

	"padoca/internal"
	"padoca/internal/util"
)

// Heuristic is the keyword analyzer. It never errors: a reply it cannot make
// sense of simply comes back with HasQuote=false.
type Heuristic struct{}

var (
	quoteKeywords   = []string{"cotação", "cotacao", "orçamento", "orcamento", "segue os valores", "segue valores", "preço", "preco", "valor unit"}
	problemKeywords = []string{"indisponível", "indisponivel", "em falta", "sem estoque", "fora de linha", "aumento de preço", "aumento de preco", "reajuste", "atraso"}
	urgentKeywords  = []string{"urgente", "último lote", "ultimo lote", "hoje apenas", "somente hoje"}

	deliveryPattern = regexp.MustCompile(`(?i)(\d+)\s*dias?(?:\s*[úu]teis)?`)
	totalPattern    = regexp.MustCompile(`(?i)\btotal\b`)
	paymentPattern  = regexp.MustCompile(`(?i)(boleto|faturado|pix|à vista|a vista|\d+\s*dias? para pagamento|\d+dd)`)
)

func (Heuristic) Analyze(_ context.Context, text string, items []internal.QuoteItem) (Result, error) {
	lower := strings.ToLower(text)
	lines := strings.Split(text, "\n")

	result := Result{}
	result.Analysis.HasProblems = containsAny(lower, problemKeywords)

	// Per-item pass: a line mentioning the item name carries its price and
	// availability.
	for _, it := range items {
		if util.NormalizeName(it.Name) == "" {
			continue
		}
		for _, line := range lines {
			if !util.NamesRelated(it.Name, line) {
				continue
			}
			ip := ItemPrice{Name: it.Name}
			ip.UnitPrice = util.ParsePrice(line)
			if containsAny(strings.ToLower(line), problemKeywords) {
				ip.Available = util.BoolPtr(false)
			} else if ip.UnitPrice != nil {
				ip.Available = util.BoolPtr(true)
			}
			if ip.UnitPrice != nil || ip.Available != nil {
				result.ItemPrices = append(result.ItemPrices, ip)
				break
			}
		}
	}

	// Explicit total line wins; otherwise the items priced so far add up.
	for _, line := range lines {
		if totalPattern.MatchString(line) {
			if price := util.ParsePrice(line); price != nil {
				result.Analysis.TotalQuote = price
				break
			}
		}
	}
	if result.Analysis.TotalQuote == nil && len(result.ItemPrices) > 0 && len(result.ItemPrices) == len(items) {
		sum := 0.0
		complete := true
		for i, ip := range result.ItemPrices {
			if ip.UnitPrice == nil {
				complete = false
				break
			}
			sum += *ip.UnitPrice * items[i].QuantityToOrder
		}
		if complete && sum > 0 {
			result.Analysis.TotalQuote = util.FloatPtr(sum)
		}
	}

	if m := deliveryPattern.FindStringSubmatch(lower); len(m) == 2 {
		if days := parseDays(m[1]); days != nil {
			result.Analysis.DeliveryDays = days
		}
	}
	if m := paymentPattern.FindStringSubmatch(text); len(m) > 1 {
		result.Analysis.PaymentTerms = strings.TrimSpace(m[1])
	}

	result.Analysis.HasQuote = result.Analysis.TotalQuote != nil ||
		len(result.ItemPrices) > 0 ||
		(containsAny(lower, quoteKeywords) && util.ParsePrice(text) != nil)

	result.Analysis.Urgency = "low"
	if containsAny(lower, urgentKeywords) {
		result.Analysis.Urgency = "high"
	}

	switch {
	case result.Analysis.HasQuote && result.Analysis.HasProblems:
		result.Analysis.SuggestedAction = "revisar itens com problema antes de confirmar"
	case result.Analysis.HasQuote:
		result.Analysis.SuggestedAction = "comparar com demais fornecedores"
	default:
		result.Analysis.SuggestedAction = "aguardar cotação formal"
	}

	return result, nil
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func parseDays(token string) *int {
	n := 0
	for _, r := range token {
		if r < '0' || r > '9' {
			return nil
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return nil
	}
	return &n
}
