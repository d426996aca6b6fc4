package quote

import (
	"testing"
	"time"

	"padoca/internal"
)

func TestReplenishScan(t *testing.T) {
	now := time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)
	confirmed := internal.Quotation{
		ID:     "q1",
		Status: internal.StatusConfirmed,
		Items:  []internal.QuoteItem{{ID: "A", Name: "Farinha"}, {ID: "B", Name: "Fermento"}},
	}

	// A below threshold, B at threshold: no promotion.
	inventory := []internal.InventoryItem{
		{ID: "A", Name: "Farinha", PackageQty: 25, PackageCount: 1, MinStock: 50},
		{ID: "B", Name: "Fermento", PackageQty: 1, PackageCount: 2, MinStock: 2},
	}
	updated, promoted := ReplenishScan([]internal.Quotation{confirmed}, inventory, now)
	if len(promoted) != 0 {
		t.Fatalf("promoted with an item still below threshold: %v", promoted)
	}
	if updated[0].Status != internal.StatusConfirmed {
		t.Fatalf("status changed without full replenishment: %q", updated[0].Status)
	}

	// A restocked: exactly one promotion.
	inventory[0].PackageCount = 2
	updated, promoted = ReplenishScan([]internal.Quotation{confirmed}, inventory, now)
	if len(promoted) != 1 || promoted[0] != "q1" {
		t.Fatalf("expected exactly one promotion, got %v", promoted)
	}
	if updated[0].Status != internal.StatusDelivered || updated[0].DeliveredAt == nil {
		t.Fatalf("promotion incomplete: %+v", updated[0])
	}

	// Already delivered: nothing further happens.
	_, promoted = ReplenishScan(updated, inventory, now)
	if len(promoted) != 0 {
		t.Fatalf("delivered quotation promoted again: %v", promoted)
	}
}

func TestReplenishScanIgnoresUnknownItems(t *testing.T) {
	q := internal.Quotation{
		ID:     "q1",
		Status: internal.StatusConfirmed,
		Items:  []internal.QuoteItem{{ID: "missing", Name: "Sem cadastro"}},
	}
	_, promoted := ReplenishScan([]internal.Quotation{q}, nil, time.Now())
	if len(promoted) != 0 {
		t.Fatalf("quotation with unknown item must not be promoted: %v", promoted)
	}
}

func TestReplenishScanDoesNotMutateInput(t *testing.T) {
	quotes := []internal.Quotation{{
		ID:     "q1",
		Status: internal.StatusConfirmed,
		Items:  []internal.QuoteItem{{ID: "A"}},
	}}
	inventory := []internal.InventoryItem{{ID: "A", PackageQty: 10, PackageCount: 10, MinStock: 5}}

	_, _ = ReplenishScan(quotes, inventory, time.Now())
	if quotes[0].Status != internal.StatusConfirmed {
		t.Fatalf("input slice was mutated: %q", quotes[0].Status)
	}
}
