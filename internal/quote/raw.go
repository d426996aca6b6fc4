package quote

import (
	"encoding/json"
	"strings"
	"time"

	"padoca/internal"
)

// FromRaw converts one loosely-typed store document into the canonical
// Quotation. Documents written by different client revisions name the same
// field differently (items[].id vs items[].productId, supplierEmail vs to,
// unix-milli vs RFC3339 timestamps); every such fallback chain lives here and
// nowhere else.
func FromRaw(raw map[string]any) internal.Quotation {
	q := internal.Quotation{}

	q.ID = rawString(raw, "id", "localId")
	q.RemoteID = rawString(raw, "remoteId")
	if q.RemoteID == "" {
		// A document read back from the store is known by its document id.
		q.RemoteID = q.ID
	}

	q.SupplierID = rawString(raw, "supplierId", "supplier_id", "fornecedorId")
	q.SupplierName = rawString(raw, "supplierName", "fornecedor")
	q.SupplierEmail = rawString(raw, "supplierEmail", "to", "email")
	q.Subject = rawString(raw, "subject", "assunto")
	q.Body = rawString(raw, "body", "emailBody", "mensagem")
	q.RemoteStatus = rawString(raw, "status")
	q.Status = MapStatus(q.RemoteStatus)
	q.Reply = rawString(raw, "reply", "supplierReply", "resposta")
	q.OrderID = rawString(raw, "orderId", "order_id", "pedidoId")
	q.AutoConfirmed = rawBool(raw, "autoConfirmed")

	q.CreatedAt = rawTime(raw, "createdAt", "created_at")
	q.SentAt = rawTime(raw, "sentAt", "sent_at")
	if q.SentAt.IsZero() {
		q.SentAt = q.CreatedAt
	}
	if t := rawTime(raw, "replyAt", "repliedAt", "reply_at"); !t.IsZero() {
		q.ReplyAt = &t
	}
	if t := rawTime(raw, "confirmedAt", "confirmed_at"); !t.IsZero() {
		q.ConfirmedAt = &t
	}
	if t := rawTime(raw, "deliveredAt", "delivered_at"); !t.IsZero() {
		q.DeliveredAt = &t
	}
	if t := rawTime(raw, "deliveryDate", "expectedDelivery"); !t.IsZero() {
		q.DeliveryDate = &t
	}

	if v := rawFloat(raw, "totalQuote", "total", "valorTotal"); v != nil {
		q.TotalQuote = v
	}

	q.Items = rawItems(raw["items"])
	q.Analysis = rawAnalysis(raw["analysis"], raw["aiAnalysis"])

	return q
}

// FromRawAll maps a whole snapshot, dropping documents with no identity at all.
func FromRawAll(docs []map[string]any) []internal.Quotation {
	out := make([]internal.Quotation, 0, len(docs))
	for _, doc := range docs {
		q := FromRaw(doc)
		if q.ID == "" && q.RemoteID == "" && q.SupplierEmail == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}

func rawItems(v any) []internal.QuoteItem {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]internal.QuoteItem, 0, len(arr))
	for _, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		item := internal.QuoteItem{
			ID:   rawString(m, "id", "productId", "itemId"),
			Name: rawString(m, "name", "productName", "nome"),
			Unit: rawString(m, "unit", "unidade"),
		}
		if f := rawFloat(m, "quantityToOrder", "quantity", "qty", "quantidade"); f != nil {
			item.QuantityToOrder = *f
		}
		if f := rawFloat(m, "quantityInStock", "inStock", "estoque"); f != nil {
			item.QuantityInStock = *f
		}
		item.UnitPrice = rawFloat(m, "unitPrice", "price", "preco", "precoUnitario")
		if b, ok := m["available"].(bool); ok {
			item.Available = &b
		} else if b, ok := m["disponivel"].(bool); ok {
			item.Available = &b
		}
		if item.ID == "" && item.Name == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func rawAnalysis(values ...any) *internal.Analysis {
	for _, v := range values {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		a := &internal.Analysis{
			HasQuote:        rawBool(m, "hasQuote"),
			TotalQuote:      rawFloat(m, "totalQuote", "total"),
			PaymentTerms:    rawString(m, "paymentTerms", "condicoesPagamento"),
			HasProblems:     rawBool(m, "hasProblems"),
			Urgency:         rawString(m, "urgency", "urgencia"),
			SuggestedAction: rawString(m, "suggestedAction", "acaoSugerida"),
		}
		if f := rawFloat(m, "deliveryDays", "prazoEntregaDias"); f != nil {
			d := int(*f)
			a.DeliveryDays = &d
		}
		return a
	}
	return nil
}

func rawString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func rawBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b
		}
	}
	return false
}

func rawFloat(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		switch t := m[k].(type) {
		case float64:
			v := t
			return &v
		case int:
			v := float64(t)
			return &v
		case int64:
			v := float64(t)
			return &v
		case json.Number:
			if f, err := t.Float64(); err == nil {
				return &f
			}
		}
	}
	return nil
}

func rawTime(m map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch t := m[k].(type) {
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed
			}
		case float64:
			if t > 0 {
				return time.UnixMilli(int64(t)).UTC()
			}
		case int64:
			if t > 0 {
				return time.UnixMilli(t).UTC()
			}
		case json.Number:
			if ms, err := t.Int64(); err == nil && ms > 0 {
				return time.UnixMilli(ms).UTC()
			}
		}
	}
	return time.Time{}
}
