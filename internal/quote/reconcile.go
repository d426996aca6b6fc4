package quote

import (
	"padoca/internal"
	"padoca/internal/util"
)

// SnapshotResult is the outcome of folding one remote snapshot into local state.
// Quotes is the full next state; the counters feed the two summary
// notifications (one per kind, never one per record).
type SnapshotResult struct {
	Quotes         []internal.Quotation
	Changed        bool
	NewlyQuoted    int
	NewlyConfirmed int
}

// ApplySnapshot is the reconciliation reducer: (local state, snapshot) -> next
// state. It is pure; callers own locking and persistence. Each local quotation
// is matched to at most one remote record (remote-id, then plain id, then fuzzy
// email), merged under the guards in mergeQuotation, and remote-only records are
// appended. The result passes through Deduplicate so the anti-duplicate
// invariant holds at merge time as well as at send time.
func ApplySnapshot(local, remote []internal.Quotation) SnapshotResult {
	// First-load race: nothing local yet means the snapshot is authoritative.
	if len(local) == 0 {
		quotes := Deduplicate(remote, PrioritizeNewest)
		return SnapshotResult{Quotes: quotes, Changed: len(quotes) > 0}
	}

	res := SnapshotResult{Quotes: make([]internal.Quotation, 0, len(local))}
	consumed := make([]bool, len(remote))

	for _, loc := range local {
		idx := matchRemote(loc, remote)
		if idx < 0 {
			res.Quotes = append(res.Quotes, loc)
			continue
		}
		consumed[idx] = true

		merged, changed := mergeQuotation(loc, remote[idx])
		res.Quotes = append(res.Quotes, merged)
		if !changed {
			continue
		}
		res.Changed = true
		if Rank(loc.Status) < Rank(internal.StatusQuoted) && merged.Status == internal.StatusQuoted {
			res.NewlyQuoted++
		}
		// Only automatic confirmations count: a manual confirm done on another
		// client arrives through the same snapshot but was already announced
		// there.
		if merged.AutoConfirmed && Rank(loc.Status) < Rank(internal.StatusConfirmed) && merged.Status == internal.StatusConfirmed {
			res.NewlyConfirmed++
		}
	}

	for i, rem := range remote {
		if !consumed[i] {
			res.Quotes = append(res.Quotes, rem)
			res.Changed = true
		}
	}

	res.Quotes = Deduplicate(res.Quotes, PrioritizeNewest)
	return res
}

// matchRemote finds the index of the remote record this local quotation refers
// to, or -1. First matching tier wins and the search stops there.
func matchRemote(local internal.Quotation, remote []internal.Quotation) int {
	if local.RemoteID != "" {
		for i, r := range remote {
			if r.ID == local.RemoteID {
				return i
			}
		}
	}

	for i, r := range remote {
		if r.ID != "" && r.ID == local.ID {
			return i
		}
	}

	// Fuzzy email, gated on supplier engagement so an untouched outbound copy
	// never steals the match. Among several engaged candidates the freshest
	// reply wins.
	best := -1
	for i, r := range remote {
		if !engaged(r) {
			continue
		}
		if !EmailsRelated(local.SupplierEmail, r.SupplierEmail) {
			continue
		}
		if best < 0 || replyAfter(r, remote[best]) {
			best = i
		}
	}
	return best
}

func engaged(r internal.Quotation) bool {
	return r.Status == internal.StatusAwaiting || r.Status == internal.StatusQuoted || r.ReplyAt != nil
}

func replyAfter(a, b internal.Quotation) bool {
	if a.ReplyAt == nil {
		return false
	}
	if b.ReplyAt == nil {
		return true
	}
	return a.ReplyAt.After(*b.ReplyAt)
}

// mergeQuotation applies one guarded, non-destructive merge. The local record
// is returned untouched unless the remote copy carries information it lacks.
func mergeQuotation(local, remote internal.Quotation) (internal.Quotation, bool) {
	// Delivered is terminal, confirmed with a linked order is fully synced.
	if local.Status == internal.StatusDelivered {
		return local, false
	}
	if local.Status == internal.StatusConfirmed && local.OrderID != "" {
		return local, false
	}
	if !hasNewInfo(local, remote) {
		return local, false
	}

	merged := local
	if remote.ID != "" {
		merged.RemoteID = remote.ID
	}

	if remote.ReplyAt != nil {
		merged.ReplyAt = remote.ReplyAt
	}
	if remote.Reply != "" {
		merged.Reply = remote.Reply
	}

	// The remote status is the system of record once it exists, but a merge
	// never walks status backwards down the canonical ordering.
	if remote.RemoteStatus != "" {
		merged.RemoteStatus = remote.RemoteStatus
		if cand := MapStatus(remote.RemoteStatus); Rank(cand) >= Rank(local.Status) {
			merged.Status = cand
		}
	}

	if remote.TotalQuote != nil {
		merged.TotalQuote = remote.TotalQuote
	}
	if remote.DeliveryDate != nil {
		merged.DeliveryDate = remote.DeliveryDate
	}
	if remote.Analysis != nil {
		merged.Analysis = remote.Analysis
	}
	if remote.OrderID != "" {
		merged.OrderID = remote.OrderID
	}
	if remote.ConfirmedAt != nil {
		merged.ConfirmedAt = remote.ConfirmedAt
	}
	if remote.AutoConfirmed {
		merged.AutoConfirmed = true
	}

	merged.Items = mergeItems(local.Items, remote.Items)
	return merged, true
}

// mergeItems re-matches line items by normalized name containment (the two
// representations share no stable item id) and copies pricing onto the local
// lines. The sent item set itself is immutable.
func mergeItems(local, remote []internal.QuoteItem) []internal.QuoteItem {
	if len(local) == 0 {
		return remote
	}
	if len(remote) == 0 {
		return local
	}

	out := make([]internal.QuoteItem, len(local))
	copy(out, local)
	for i := range out {
		for _, rem := range remote {
			if !util.NamesRelated(out[i].Name, rem.Name) {
				continue
			}
			if rem.UnitPrice != nil {
				out[i].UnitPrice = rem.UnitPrice
			}
			if rem.Available != nil {
				out[i].Available = rem.Available
			}
			break
		}
	}
	return out
}

func hasNewInfo(local, remote internal.Quotation) bool {
	if remote.ReplyAt != nil && (local.ReplyAt == nil || !local.ReplyAt.Equal(*remote.ReplyAt)) {
		return true
	}
	if remote.RemoteStatus != "" && remote.RemoteStatus != local.RemoteStatus {
		return true
	}
	if remote.TotalQuote != nil && local.TotalQuote == nil {
		return true
	}
	if remote.OrderID != "" && local.OrderID == "" {
		return true
	}
	if remote.ConfirmedAt != nil && local.ConfirmedAt == nil {
		return true
	}
	return hasNewPricing(local.Items, remote.Items)
}

func hasNewPricing(local, remote []internal.QuoteItem) bool {
	for _, rem := range remote {
		if rem.UnitPrice == nil {
			continue
		}
		for _, loc := range local {
			if util.NamesRelated(loc.Name, rem.Name) {
				if loc.UnitPrice == nil || *loc.UnitPrice != *rem.UnitPrice {
					return true
				}
				break
			}
		}
	}
	return false
}
