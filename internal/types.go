package internal

import "time"

// Status is the canonical quotation status. Backend records arrive with a mix of
// Portuguese and English vocabularies; quote.MapStatus folds them into this set.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAwaiting  Status = "awaiting"
	StatusQuoted    Status = "quoted"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
)

type OrderStatus string

const (
	OrderPendingConfirmation OrderStatus = "pending_confirmation"
	OrderConfirmed           OrderStatus = "confirmed"
)

// QuoteItem is one line of a quotation. Remote representations carry no stable
// item id, so reconciliation re-matches lines by normalized name.
type QuoteItem struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	Unit            string   `json:"unit,omitempty"`
	QuantityToOrder float64  `json:"quantityToOrder"`
	QuantityInStock float64  `json:"quantityInStock,omitempty"`
	UnitPrice       *float64 `json:"unitPrice,omitempty"`
	Available       *bool    `json:"available,omitempty"`
}

// Analysis is the structured extraction produced from a supplier reply.
type Analysis struct {
	HasQuote        bool     `json:"hasQuote"`
	TotalQuote      *float64 `json:"totalQuote,omitempty"`
	DeliveryDays    *int     `json:"deliveryDays,omitempty"`
	PaymentTerms    string   `json:"paymentTerms,omitempty"`
	HasProblems     bool     `json:"hasProblems,omitempty"`
	Urgency         string   `json:"urgency,omitempty"`
	SuggestedAction string   `json:"suggestedAction,omitempty"`
}

// Quotation is the central entity: a pricing request sent to one supplier for a
// set of inventory items. ID is the time-based local id minted at send time;
// RemoteID is assigned once the record is persisted remotely. The two are not
// always equal, which is what the match precedence in quote/reconcile.go exists
// to resolve.
type Quotation struct {
	ID            string      `json:"id"`
	RemoteID      string      `json:"remoteId,omitempty"`
	SupplierID    string      `json:"supplierId"`
	SupplierName  string      `json:"supplierName,omitempty"`
	SupplierEmail string      `json:"supplierEmail"`
	Items         []QuoteItem `json:"items"`
	Subject       string      `json:"subject,omitempty"`
	Body          string      `json:"body,omitempty"`
	Status        Status      `json:"status"`
	RemoteStatus  string      `json:"remoteStatus,omitempty"` // last raw status seen from the store
	CreatedAt     time.Time   `json:"createdAt"`
	SentAt        time.Time   `json:"sentAt,omitempty"`
	ReplyAt       *time.Time  `json:"replyAt,omitempty"`
	Reply         string      `json:"reply,omitempty"`
	TotalQuote    *float64    `json:"totalQuote,omitempty"`
	DeliveryDate  *time.Time  `json:"deliveryDate,omitempty"`
	Analysis      *Analysis   `json:"analysis,omitempty"`
	OrderID       string      `json:"orderId,omitempty"`
	ConfirmedAt   *time.Time  `json:"confirmedAt,omitempty"`
	DeliveredAt   *time.Time  `json:"deliveredAt,omitempty"`
	AutoConfirmed bool        `json:"autoConfirmed,omitempty"`
}

// ItemIDs returns the ids of the quotation's line items, skipping items that
// never had one (legacy cache records).
func (q Quotation) ItemIDs() []string {
	out := make([]string, 0, len(q.Items))
	for _, it := range q.Items {
		if it.ID != "" {
			out = append(out, it.ID)
		}
	}
	return out
}

// Order is created exactly once per confirmed quotation.
type Order struct {
	ID           string      `json:"id"`
	QuotationID  string      `json:"quotationId"`
	SupplierID   string      `json:"supplierId,omitempty"`
	SupplierName string      `json:"supplierName,omitempty"`
	Status       OrderStatus `json:"status"`
	Items        []QuoteItem `json:"items,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	ConfirmedAt  *time.Time  `json:"confirmedAt,omitempty"`
}

// InventoryItem is a read-only input: mutated externally, consumed by the stock
// classifier and the replenishment watcher.
type InventoryItem struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	PackageQty   float64 `json:"packageQty"`
	PackageCount float64 `json:"packageCount"`
	MinStock     float64 `json:"minStock"`
	MaxStock     float64 `json:"maxStock"`
	SupplierID   string  `json:"supplierId,omitempty"`
}

func (i InventoryItem) CurrentStock() float64 {
	return i.PackageQty * i.PackageCount
}

func (i InventoryItem) BelowMinimum() bool {
	return i.CurrentStock() < i.MinStock
}

type Supplier struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	ItemIDs []string `json:"itemIds,omitempty"`
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type OutboundEmail struct {
	To      string
	Subject string
	Body    string
}

type ReplyRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}
