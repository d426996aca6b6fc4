// Package inventory classifies stock levels and decides which items are worth
// a new quotation request. The inventory itself is a read-only input, mutated
// elsewhere.
package inventory

import (
	"sort"

	"padoca/internal"
	"padoca/internal/quote"
)

type StockLevel string

const (
	StockOut StockLevel = "out"
	StockLow StockLevel = "low"
	StockOK  StockLevel = "ok"
)

func Classify(item internal.InventoryItem) StockLevel {
	current := item.CurrentStock()
	switch {
	case current <= 0:
		return StockOut
	case current < item.MinStock:
		return StockLow
	default:
		return StockOK
	}
}

// Alert is one supplier's worth of items that need restocking and are not
// already covered by an active quotation.
type Alert struct {
	SupplierID string
	Items      []internal.InventoryItem
}

// PendingAlerts returns low or depleted items grouped by supplier, excluding
// any item that an active quotation already asks for. Suppliers come back in
// stable id order.
func PendingAlerts(items []internal.InventoryItem, quotations []internal.Quotation) []Alert {
	covered := map[string]bool{}
	for _, q := range quotations {
		if !quote.IsActive(q) {
			continue
		}
		for _, id := range q.ItemIDs() {
			covered[id] = true
		}
	}

	bySupplier := map[string][]internal.InventoryItem{}
	for _, item := range items {
		if Classify(item) == StockOK {
			continue
		}
		if covered[item.ID] {
			continue
		}
		bySupplier[item.SupplierID] = append(bySupplier[item.SupplierID], item)
	}

	supplierIDs := make([]string, 0, len(bySupplier))
	for id := range bySupplier {
		supplierIDs = append(supplierIDs, id)
	}
	sort.Strings(supplierIDs)

	out := make([]Alert, 0, len(supplierIDs))
	for _, id := range supplierIDs {
		out = append(out, Alert{SupplierID: id, Items: bySupplier[id]})
	}
	return out
}

// Fingerprint condenses the stock state into a comparable string so the
// listener can tell whether an inventory snapshot actually changed.
func Fingerprint(items []internal.InventoryItem) string {
	sorted := make([]internal.InventoryItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	fp := ""
	for _, item := range sorted {
		fp += item.ID + ":" + string(Classify(item)) + ";"
	}
	return fp
}
