package quote

import "padoca/internal"

// ActiveOrders derives the user-facing orders list: quotations that progressed
// past negotiation, unioned with the remote orders collection, minus anything
// already delivered. Pure function of its inputs; the "pending" and "orders"
// tabs stay mutually exclusive because delivered identities are removed even
// when a stale order record still exists remotely.
func ActiveOrders(quotations []internal.Quotation, remoteOrders []internal.Order) []internal.Order {
	delivered := map[string]bool{}
	for _, q := range quotations {
		if q.Status != internal.StatusDelivered {
			continue
		}
		markID(delivered, q.ID)
		markID(delivered, q.RemoteID)
		markID(delivered, q.OrderID)
	}

	out := make([]internal.Order, 0, len(remoteOrders))
	seen := map[string]bool{}

	for _, q := range quotations {
		if q.Status != internal.StatusConfirmed {
			continue
		}
		ord := orderFromQuotation(q)
		if identitySeen(seen, ord) || identityIn(delivered, ord) {
			continue
		}
		claimIdentity(seen, ord)
		out = append(out, ord)
	}

	for _, ord := range remoteOrders {
		if identitySeen(seen, ord) || identityIn(delivered, ord) {
			continue
		}
		claimIdentity(seen, ord)
		out = append(out, ord)
	}

	return out
}

func orderFromQuotation(q internal.Quotation) internal.Order {
	ord := internal.Order{
		ID:           q.OrderID,
		QuotationID:  q.ID,
		SupplierID:   q.SupplierID,
		SupplierName: q.SupplierName,
		Items:        q.Items,
		CreatedAt:    q.CreatedAt,
		ConfirmedAt:  q.ConfirmedAt,
		Status:       internal.OrderPendingConfirmation,
	}
	if q.OrderID != "" {
		ord.Status = internal.OrderConfirmed
	} else {
		ord.ID = q.ID
	}
	return ord
}

func markID(set map[string]bool, id string) {
	if id != "" {
		set[id] = true
	}
}

func claimIdentity(set map[string]bool, ord internal.Order) {
	markID(set, ord.ID)
	markID(set, ord.QuotationID)
}

func identitySeen(set map[string]bool, ord internal.Order) bool {
	return identityIn(set, ord)
}

func identityIn(set map[string]bool, ord internal.Order) bool {
	return (ord.ID != "" && set[ord.ID]) || (ord.QuotationID != "" && set[ord.QuotationID])
}
