package quote

import (
	"testing"
	"time"

	"padoca/internal"
)

func TestActiveOrdersSynthesizesFromConfirmedQuotations(t *testing.T) {
	quotes := []internal.Quotation{
		{ID: "q1", Status: internal.StatusConfirmed, SupplierID: "S1"},
		{ID: "q2", Status: internal.StatusQuoted, SupplierID: "S2"},
	}

	out := ActiveOrders(quotes, nil)
	if len(out) != 1 {
		t.Fatalf("expected 1 order, got %d", len(out))
	}
	if out[0].QuotationID != "q1" || out[0].Status != internal.OrderPendingConfirmation {
		t.Fatalf("unexpected order: %+v", out[0])
	}
}

func TestActiveOrdersUnionWithoutDuplicates(t *testing.T) {
	confirmedAt := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	quotes := []internal.Quotation{
		{ID: "q1", Status: internal.StatusConfirmed, OrderID: "ord_1", ConfirmedAt: &confirmedAt},
	}
	remoteOrders := []internal.Order{
		{ID: "ord_1", QuotationID: "q1", Status: internal.OrderConfirmed},
		{ID: "ord_2", QuotationID: "q9", Status: internal.OrderPendingConfirmation},
	}

	out := ActiveOrders(quotes, remoteOrders)
	if len(out) != 2 {
		t.Fatalf("expected 2 orders, got %d: %+v", len(out), out)
	}
	ids := map[string]bool{}
	for _, o := range out {
		if ids[o.ID] {
			t.Fatalf("duplicate order %q", o.ID)
		}
		ids[o.ID] = true
	}
}

func TestActiveOrdersExcludesDelivered(t *testing.T) {
	quotes := []internal.Quotation{
		{ID: "q1", Status: internal.StatusDelivered, OrderID: "ord_1"},
	}
	remoteOrders := []internal.Order{
		// Stale order record for an already delivered quotation.
		{ID: "ord_1", QuotationID: "q1", Status: internal.OrderConfirmed},
		{ID: "ord_2", QuotationID: "q2", Status: internal.OrderConfirmed},
	}

	out := ActiveOrders(quotes, remoteOrders)
	if len(out) != 1 || out[0].ID != "ord_2" {
		t.Fatalf("delivered order must disappear from the view: %+v", out)
	}
}
