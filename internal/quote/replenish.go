package quote

import (
	"time"

	"padoca/internal"
)

// ReplenishScan promotes confirmed quotations to delivered once every one of
// their items is back at or above its minimum stock. Pure reducer: the caller
// decides when to run it (only on inventory change, never on quotation change,
// to avoid a feedback loop) and persists the promoted records.
func ReplenishScan(quotes []internal.Quotation, inventory []internal.InventoryItem, now time.Time) (updated []internal.Quotation, promoted []string) {
	byID := make(map[string]internal.InventoryItem, len(inventory))
	for _, item := range inventory {
		byID[item.ID] = item
	}

	updated = make([]internal.Quotation, len(quotes))
	copy(updated, quotes)

	for i, q := range updated {
		if q.Status != internal.StatusConfirmed {
			continue
		}
		ids := q.ItemIDs()
		if len(ids) == 0 {
			continue
		}
		if !allReplenished(ids, byID) {
			continue
		}

		stamp := now
		updated[i].Status = internal.StatusDelivered
		updated[i].DeliveredAt = &stamp
		promoted = append(promoted, q.ID)
	}

	return updated, promoted
}

func allReplenished(ids []string, inventory map[string]internal.InventoryItem) bool {
	for _, id := range ids {
		item, ok := inventory[id]
		if !ok {
			return false
		}
		if item.CurrentStock() < item.MinStock {
			return false
		}
	}
	return true
}
