package quote

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"padoca/internal"
)

// Send-time precondition failures. Each names the specific violated rule so the
// caller can surface it verbatim; none of them mutates any state.
var (
	ErrMissingAddress  = errors.New("supplier email address is empty")
	ErrSupplierBusy    = errors.New("supplier already has an open quotation")
	ErrItemsBusy       = errors.New("item already covered by an active quotation")
	ErrDuplicateRecent = errors.New("identical quotation sent to this address within the duplicate window")
	ErrSendInFlight    = errors.New("a send is already in flight")
)

type SendRequest struct {
	SupplierID    string
	SupplierName  string
	SupplierEmail string
	Items         []internal.QuoteItem
	Subject       string
	Body          string
}

// ValidateSend runs every synchronous precondition against current state.
// Checked in order: address present, supplier not already in outreach, no item
// overlap with any active quotation, and the time-boxed identical-item-set
// idempotency window.
func ValidateSend(existing []internal.Quotation, req SendRequest, now time.Time, window time.Duration) error {
	if strings.TrimSpace(req.SupplierEmail) == "" {
		return ErrMissingAddress
	}

	for _, q := range existing {
		if !IsActive(q) {
			continue
		}
		if IsPreQuoted(q) && q.SupplierID != "" && q.SupplierID == req.SupplierID {
			return fmt.Errorf("%w: %s", ErrSupplierBusy, supplierLabel(q))
		}
	}

	activeItems := map[string]string{}
	for _, q := range existing {
		if !IsActive(q) {
			continue
		}
		for _, id := range q.ItemIDs() {
			activeItems[id] = supplierLabel(q)
		}
	}
	for _, it := range req.Items {
		if it.ID == "" {
			continue
		}
		if owner, taken := activeItems[it.ID]; taken {
			return fmt.Errorf("%w: %s (requested from %s)", ErrItemsBusy, it.Name, owner)
		}
	}

	reqKey := CompositeKey("addr", sortedIDs(req.Items))
	addr := NormalizeEmail(req.SupplierEmail)
	for _, q := range existing {
		if !IsActive(q) || !IsPreQuoted(q) {
			continue
		}
		if NormalizeEmail(q.SupplierEmail) != addr {
			continue
		}
		if CompositeKey("addr", sortedIDs(q.Items)) != reqKey {
			continue
		}
		if now.Sub(recordTime(q)) < window {
			return fmt.Errorf("%w: sent %s ago", ErrDuplicateRecent, now.Sub(recordTime(q)).Round(time.Minute))
		}
	}

	return nil
}

// SendKey is the idempotency key for one logical send: same supplier, same item
// set, same coarse time bucket collapse into one remote operation even when the
// pipeline is invoked twice.
func SendKey(supplierID string, items []internal.QuoteItem, t time.Time) string {
	sum := sha1.Sum([]byte(strings.Join(sortedIDs(items), ",")))
	return supplierID + ":" + hex.EncodeToString(sum[:8]) + ":" + strconv.FormatInt(t.Truncate(time.Hour).Unix(), 10)
}

// NewQuotation builds the optimistic local record. The local id is time-based,
// minted at send time; the remote id arrives later through reconciliation.
func NewQuotation(req SendRequest, now time.Time) internal.Quotation {
	items := make([]internal.QuoteItem, len(req.Items))
	copy(items, req.Items)
	return internal.Quotation{
		ID:            strconv.FormatInt(now.UnixMilli(), 10),
		SupplierID:    req.SupplierID,
		SupplierName:  req.SupplierName,
		SupplierEmail: req.SupplierEmail,
		Items:         items,
		Subject:       req.Subject,
		Body:          req.Body,
		Status:        internal.StatusPending,
		CreatedAt:     now,
		SentAt:        now,
	}
}

func sortedIDs(items []internal.QuoteItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ID != "" {
			ids = append(ids, it.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func supplierLabel(q internal.Quotation) string {
	if q.SupplierName != "" {
		return q.SupplierName
	}
	if q.SupplierID != "" {
		return q.SupplierID
	}
	return q.SupplierEmail
}
