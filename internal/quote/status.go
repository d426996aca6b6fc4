package quote

import (
	"strings"

	"padoca/internal"
)

// statusVocab folds every status spelling the store has ever produced into the
// canonical set. The reply pipeline historically wrote Portuguese statuses while
// the web client wrote English ones; both still exist in stored documents.
var statusVocab = map[string]internal.Status{
	"pending":             internal.StatusPending,
	"pendente":            internal.StatusPending,
	"enviado":             internal.StatusPending,
	"enviada":             internal.StatusPending,
	"sent":                internal.StatusPending,
	"awaiting":            internal.StatusAwaiting,
	"awaiting_reply":      internal.StatusAwaiting,
	"aguardando":          internal.StatusAwaiting,
	"aguardando_resposta": internal.StatusAwaiting,
	"em_andamento":        internal.StatusAwaiting,
	"quoted":              internal.StatusQuoted,
	"cotado":              internal.StatusQuoted,
	"cotada":              internal.StatusQuoted,
	"replied":             internal.StatusQuoted,
	"respondido":          internal.StatusQuoted,
	"resposta_recebida":   internal.StatusQuoted,
	"confirmed":           internal.StatusConfirmed,
	"confirmado":          internal.StatusConfirmed,
	"confirmada":          internal.StatusConfirmed,
	"aprovado":            internal.StatusConfirmed,
	"order_created":       internal.StatusConfirmed,
	"pedido_criado":       internal.StatusConfirmed,
	"delivered":           internal.StatusDelivered,
	"entregue":            internal.StatusDelivered,
	"recebido":            internal.StatusDelivered,
	"finalizado":          internal.StatusDelivered,
}

var statusRank = map[internal.Status]int{
	internal.StatusPending:   0,
	internal.StatusAwaiting:  1,
	internal.StatusQuoted:    2,
	internal.StatusConfirmed: 3,
	internal.StatusDelivered: 4,
}

// MapStatus maps a raw backend status into the canonical set. Total: unknown
// inputs fall back to pending. Idempotent: canonical statuses map to themselves.
func MapStatus(raw string) internal.Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := statusVocab[key]; ok {
		return mapped
	}
	return internal.StatusPending
}

// Rank places a status on the canonical ordering
// pending < awaiting < quoted < confirmed < delivered.
func Rank(s internal.Status) int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return 0
}

// IsActive reports whether a quotation still participates in the open workflow:
// its items count as "already requested" and are excluded from new alerts.
// Delivered is terminal; confirmed with a linked order is fully handed over to
// the orders view.
func IsActive(q internal.Quotation) bool {
	switch q.Status {
	case internal.StatusDelivered:
		return false
	case internal.StatusConfirmed:
		return q.OrderID == ""
	default:
		return true
	}
}

// IsPreQuoted reports whether the quotation is still in the outreach phase,
// before any supplier pricing arrived.
func IsPreQuoted(q internal.Quotation) bool {
	return Rank(q.Status) < Rank(internal.StatusQuoted)
}
