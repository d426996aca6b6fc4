// Package board is the single owner of the canonical quotation list. All
// mutation funnels through its mutex: sends, snapshot reconciliation, user
// confirmations, and the replenishment watcher. Persistence (local cache and
// remote store) happens from here so rollback stays in one place.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"padoca/internal"
	"padoca/internal/cache"
	"padoca/internal/inventory"
	"padoca/internal/mail"
	"padoca/internal/quote"
)

var ErrQuotationNotFound = errors.New("quotation not found")

// DocStore is the slice of the remote document store the board writes to.
type DocStore interface {
	SyncQuotation(id string, fields map[string]any) error
	DeleteQuotation(id string) error
	CreateOrder(ord internal.Order) error
}

// Notifier receives the user-facing summary notifications. At most one call
// per kind per event, never one per record.
type Notifier interface {
	Notify(title, body string)
}

type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(title, body string) {
	n.Log.Info("notification", zap.String("title", title), zap.String("body", body))
}

type Board struct {
	mu     sync.Mutex
	quotes []internal.Quotation

	kv       cache.KV
	store    DocStore
	mailer   mail.Mailer
	notifier Notifier
	log      *zap.Logger
	window   time.Duration

	inFlight    map[string]bool
	recentSends map[string]time.Time

	lastInventoryFP string

	now func() time.Time
}

func New(kv cache.KV, store DocStore, mailer mail.Mailer, notifier Notifier, log *zap.Logger, window time.Duration) *Board {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = LogNotifier{Log: log}
	}
	return &Board{
		kv:          kv,
		store:       store,
		mailer:      mailer,
		notifier:    notifier,
		log:         log,
		window:      window,
		inFlight:    map[string]bool{},
		recentSends: map[string]time.Time{},
		now:         time.Now,
	}
}

// Load seeds the board from the durable cache. Corrupt or missing cache data
// comes back as an empty list, which the next snapshot bootstrap-fills.
func (b *Board) Load() error {
	quotes, err := cache.LoadQuotations(b.kv)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.quotes = quote.Deduplicate(quotes, quote.PrioritizeNewest)
	b.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current list.
func (b *Board) Snapshot() []internal.Quotation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]internal.Quotation, len(b.quotes))
	copy(out, b.quotes)
	return out
}

// HandleSnapshot folds one remote snapshot into local state and emits at most
// one notification per kind of change.
func (b *Board) HandleSnapshot(docs []map[string]any) quote.SnapshotResult {
	remote := quote.FromRawAll(docs)

	b.mu.Lock()
	res := quote.ApplySnapshot(b.quotes, remote)
	if res.Changed {
		b.quotes = res.Quotes
		if err := cache.SaveQuotations(b.kv, b.quotes); err != nil {
			b.log.Warn("cache save failed after snapshot", zap.Error(err))
		}
	}
	b.mu.Unlock()

	if res.NewlyQuoted > 0 {
		b.notifier.Notify("Cotações recebidas", fmt.Sprintf("%d fornecedor(es) enviaram preços", res.NewlyQuoted))
	}
	if res.NewlyConfirmed > 0 {
		b.notifier.Notify("Pedidos confirmados", fmt.Sprintf("%d cotação(ões) viraram pedido", res.NewlyConfirmed))
	}
	return res
}

// SendQuotation runs the optimistic send: validate, prepend locally, persist
// remotely, then email. A persist failure rolls local state and cache back to
// the exact pre-send snapshot; an email failure does not (the record exists,
// the send can be retried).
func (b *Board) SendQuotation(ctx context.Context, req quote.SendRequest) (internal.Quotation, error) {
	now := b.now()
	key := quote.SendKey(req.SupplierID, req.Items, now)

	b.mu.Lock()
	if b.inFlight[key] {
		b.mu.Unlock()
		return internal.Quotation{}, quote.ErrSendInFlight
	}
	if sentAt, ok := b.recentSends[key]; ok && now.Sub(sentAt) < b.window {
		b.mu.Unlock()
		return internal.Quotation{}, quote.ErrDuplicateRecent
	}
	if err := quote.ValidateSend(b.quotes, req, now, b.window); err != nil {
		b.mu.Unlock()
		return internal.Quotation{}, err
	}

	prevQuotes := b.quotes
	prevEncoded, err := cache.EncodeQuotations(b.quotes)
	if err != nil {
		b.mu.Unlock()
		return internal.Quotation{}, err
	}

	q := quote.NewQuotation(req, now)
	next := make([]internal.Quotation, 0, len(b.quotes)+1)
	next = append(next, q)
	next = append(next, b.quotes...)
	b.quotes = next

	if err := cache.SaveQuotations(b.kv, b.quotes); err != nil {
		b.quotes = prevQuotes
		b.mu.Unlock()
		return internal.Quotation{}, err
	}
	b.inFlight[key] = true
	b.mu.Unlock()

	if err := b.store.SyncQuotation(q.ID, persistFields(q)); err != nil {
		b.mu.Lock()
		b.quotes = prevQuotes
		if cacheErr := b.kv.Set(cache.QuotationsKey, prevEncoded); cacheErr != nil {
			b.log.Warn("cache rollback failed", zap.Error(cacheErr))
		}
		delete(b.inFlight, key)
		b.mu.Unlock()
		return internal.Quotation{}, fmt.Errorf("persist quotation: %w", err)
	}

	if err := b.mailer.Send(ctx, internal.OutboundEmail{To: req.SupplierEmail, Subject: req.Subject, Body: req.Body}); err != nil {
		// The record is already persisted; surfacing the failure is enough.
		b.log.Warn("quotation email failed",
			zap.String("quotationId", q.ID),
			zap.String("to", req.SupplierEmail),
			zap.Error(err),
		)
	} else if updated := b.markSent(q.ID); updated.ID != "" {
		q = updated
	}

	b.mu.Lock()
	for k, at := range b.recentSends {
		if now.Sub(at) >= b.window {
			delete(b.recentSends, k)
		}
	}
	b.recentSends[key] = now
	delete(b.inFlight, key)
	b.mu.Unlock()

	return q, nil
}

func (b *Board) markSent(id string) internal.Quotation {
	b.mu.Lock()
	var sent internal.Quotation
	for i := range b.quotes {
		if b.quotes[i].ID == id {
			b.quotes[i].Status = internal.StatusAwaiting
			sent = b.quotes[i]
			break
		}
	}
	if err := cache.SaveQuotations(b.kv, b.quotes); err != nil {
		b.log.Warn("cache save failed after send", zap.Error(err))
	}
	b.mu.Unlock()

	if err := b.store.SyncQuotation(id, map[string]any{"status": string(internal.StatusAwaiting)}); err != nil {
		b.log.Warn("status sync failed after send", zap.String("quotationId", id), zap.Error(err))
	}
	return sent
}

// DeleteQuotation removes a quotation locally and remotely. Only outreach-phase
// quotations can go: once pricing arrived or an order exists the record is part
// of the purchasing history and must stay.
func (b *Board) DeleteQuotation(id string) error {
	b.mu.Lock()
	idx := b.find(id)
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrQuotationNotFound, id)
	}
	if !quote.IsPreQuoted(b.quotes[idx]) {
		status := b.quotes[idx].Status
		b.mu.Unlock()
		return fmt.Errorf("quotation %s is %s and can no longer be deleted", id, status)
	}
	removed := b.quotes[idx]
	b.quotes = append(b.quotes[:idx:idx], b.quotes[idx+1:]...)
	if err := cache.SaveQuotations(b.kv, b.quotes); err != nil {
		b.log.Warn("cache save failed after delete", zap.Error(err))
	}
	b.mu.Unlock()

	return b.store.DeleteQuotation(storeID(removed))
}

// ConfirmQuotation turns a quotation into an order, exactly once.
func (b *Board) ConfirmQuotation(id string) (internal.Order, error) {
	now := b.now()

	b.mu.Lock()
	idx := b.find(id)
	if idx < 0 {
		b.mu.Unlock()
		return internal.Order{}, fmt.Errorf("%w: %s", ErrQuotationNotFound, id)
	}
	q := b.quotes[idx]
	if q.Status == internal.StatusDelivered {
		b.mu.Unlock()
		return internal.Order{}, fmt.Errorf("quotation %s already delivered", id)
	}
	if q.OrderID != "" {
		b.mu.Unlock()
		return internal.Order{}, fmt.Errorf("quotation %s already has order %s", id, q.OrderID)
	}

	ord := internal.Order{
		ID:           "ord_" + uuid.NewString(),
		QuotationID:  storeID(q),
		SupplierID:   q.SupplierID,
		SupplierName: q.SupplierName,
		Status:       internal.OrderConfirmed,
		Items:        q.Items,
		CreatedAt:    now,
		ConfirmedAt:  &now,
	}

	prevStatus := q.Status
	prevConfirmedAt := q.ConfirmedAt
	b.quotes[idx].Status = internal.StatusConfirmed
	b.quotes[idx].OrderID = ord.ID
	b.quotes[idx].ConfirmedAt = &now
	if err := cache.SaveQuotations(b.kv, b.quotes); err != nil {
		b.log.Warn("cache save failed after confirm", zap.Error(err))
	}
	b.mu.Unlock()

	if err := b.store.CreateOrder(ord); err != nil {
		// The local OrderID guard would reject every retry, so the confirm
		// must be undone: revert the fields set above and drop the phantom
		// order reference.
		b.mu.Lock()
		if i := b.find(id); i >= 0 && b.quotes[i].OrderID == ord.ID {
			b.quotes[i].Status = prevStatus
			b.quotes[i].OrderID = ""
			b.quotes[i].ConfirmedAt = prevConfirmedAt
			if cacheErr := cache.SaveQuotations(b.kv, b.quotes); cacheErr != nil {
				b.log.Warn("cache rollback failed after confirm", zap.Error(cacheErr))
			}
		}
		b.mu.Unlock()
		return internal.Order{}, fmt.Errorf("create order: %w", err)
	}
	err := b.store.SyncQuotation(storeID(q), map[string]any{
		"status":      string(internal.StatusConfirmed),
		"orderId":     ord.ID,
		"confirmedAt": now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		b.log.Warn("quotation sync failed after confirm", zap.String("quotationId", storeID(q)), zap.Error(err))
	}

	return ord, nil
}

// MarkDelivered closes a quotation by hand, for deliveries the stock watcher
// cannot see (items without a registered minimum, partial receipts).
func (b *Board) MarkDelivered(id string) error {
	now := b.now()

	b.mu.Lock()
	idx := b.find(id)
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrQuotationNotFound, id)
	}
	if b.quotes[idx].Status == internal.StatusDelivered {
		b.mu.Unlock()
		return nil
	}
	b.quotes[idx].Status = internal.StatusDelivered
	b.quotes[idx].DeliveredAt = &now
	q := b.quotes[idx]
	if err := cache.SaveQuotations(b.kv, b.quotes); err != nil {
		b.log.Warn("cache save failed after mark delivered", zap.Error(err))
	}
	b.mu.Unlock()

	err := b.store.SyncQuotation(storeID(q), map[string]any{
		"status":      string(internal.StatusDelivered),
		"deliveredAt": now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		b.log.Warn("delivered sync failed", zap.String("quotationId", storeID(q)), zap.Error(err))
	}
	return nil
}

// HandleInventory reacts to an inventory snapshot: promotes confirmed
// quotations whose items are replenished, and returns the restocking alerts.
// Runs only when the stock fingerprint actually changed, so quotation edits
// can never feed back into themselves.
func (b *Board) HandleInventory(items []internal.InventoryItem) []inventory.Alert {
	fp := inventory.Fingerprint(items)

	b.mu.Lock()
	if fp == b.lastInventoryFP {
		b.mu.Unlock()
		return nil
	}
	b.lastInventoryFP = fp

	updated, promoted := quote.ReplenishScan(b.quotes, items, b.now())
	if len(promoted) > 0 {
		b.quotes = updated
		if err := cache.SaveQuotations(b.kv, b.quotes); err != nil {
			b.log.Warn("cache save failed after replenish scan", zap.Error(err))
		}
	}
	alerts := inventory.PendingAlerts(items, b.quotes)
	b.mu.Unlock()

	for _, id := range promoted {
		err := b.store.SyncQuotation(id, map[string]any{
			"status":      string(internal.StatusDelivered),
			"deliveredAt": b.now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			b.log.Warn("delivered sync failed", zap.String("quotationId", id), zap.Error(err))
		}
	}

	if len(promoted) > 0 {
		b.notifier.Notify("Entregas detectadas", fmt.Sprintf("%d pedido(s) marcados como entregues pelo estoque", len(promoted)))
	}
	if len(alerts) > 0 {
		b.notifier.Notify("Estoque baixo", alertSummary(alerts))
	}
	return alerts
}

// ActiveOrders merges the board's quotations with the remote orders collection.
func (b *Board) ActiveOrders(remoteOrders []internal.Order) []internal.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return quote.ActiveOrders(b.quotes, remoteOrders)
}

// find matches by local id first, then remote id.
func (b *Board) find(id string) int {
	for i, q := range b.quotes {
		if q.ID == id {
			return i
		}
	}
	for i, q := range b.quotes {
		if q.RemoteID != "" && q.RemoteID == id {
			return i
		}
	}
	return -1
}

func storeID(q internal.Quotation) string {
	if q.RemoteID != "" {
		return q.RemoteID
	}
	return q.ID
}

func persistFields(q internal.Quotation) map[string]any {
	items := make([]map[string]any, 0, len(q.Items))
	for _, it := range q.Items {
		doc := map[string]any{
			"id":              it.ID,
			"name":            it.Name,
			"unit":            it.Unit,
			"quantityToOrder": it.QuantityToOrder,
		}
		if it.UnitPrice != nil {
			doc["unitPrice"] = *it.UnitPrice
		}
		items = append(items, doc)
	}

	return map[string]any{
		"supplierId":    q.SupplierID,
		"supplierName":  q.SupplierName,
		"supplierEmail": q.SupplierEmail,
		"subject":       q.Subject,
		"body":          q.Body,
		"status":        string(q.Status),
		"createdAt":     q.CreatedAt.UTC().Format(time.RFC3339),
		"sentAt":        q.SentAt.UTC().Format(time.RFC3339),
		"items":         items,
	}
}

func alertSummary(alerts []inventory.Alert) string {
	parts := make([]string, 0, len(alerts))
	for _, a := range alerts {
		names := make([]string, 0, len(a.Items))
		for _, it := range a.Items {
			names = append(names, it.Name)
		}
		label := a.SupplierID
		if label == "" {
			label = "sem fornecedor"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", label, strings.Join(names, ", ")))
	}
	return strings.Join(parts, " | ")
}
