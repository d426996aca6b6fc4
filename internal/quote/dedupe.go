package quote

import (
	"sort"
	"strings"
	"time"

	"padoca/internal"
)

type Prioritize string

// PrioritizeNewest keeps the record with the latest sent/created timestamp when
// two records collapse into one identity.
const PrioritizeNewest Prioritize = "newest"

// CompositeKey is the third identity tier: the same supplier asked about the
// same item set is the same quotation, whatever ids the two copies carry.
func CompositeKey(supplierID string, itemIDs []string) string {
	if supplierID == "" || len(itemIDs) == 0 {
		return ""
	}
	ids := append([]string(nil), itemIDs...)
	sort.Strings(ids)
	return supplierID + "_" + strings.Join(ids, ",")
}

// identityKeys returns the record's identity keys in decreasing specificity:
// local id, remote id, supplier+items composite. Keys are tier-prefixed so a
// local id can never collide with a remote id that happens to share its text.
func identityKeys(q internal.Quotation) []string {
	keys := make([]string, 0, 3)
	if q.ID != "" {
		keys = append(keys, "l:"+q.ID)
	}
	if q.RemoteID != "" {
		keys = append(keys, "r:"+q.RemoteID)
	}
	if ck := CompositeKey(q.SupplierID, q.ItemIDs()); ck != "" {
		keys = append(keys, "c:"+ck)
	}
	return keys
}

func recordTime(q internal.Quotation) time.Time {
	if !q.SentAt.IsZero() {
		return q.SentAt
	}
	return q.CreatedAt
}

// Deduplicate collapses records that share any identity key, keeping exactly
// one survivor per identity. Relative order of survivors follows first
// appearance; the survivor itself is chosen by the priority rule (newest
// timestamp, ties broken toward the record that already has a remote id).
// Idempotent: running it over its own output changes nothing.
func Deduplicate(records []internal.Quotation, prioritize Prioritize) []internal.Quotation {
	slots := make([]internal.Quotation, 0, len(records))
	claims := map[string]int{}

	claimAll := func(q internal.Quotation, slot int) {
		for _, key := range identityKeys(q) {
			if _, taken := claims[key]; !taken {
				claims[key] = slot
			}
		}
	}

	for _, rec := range records {
		slot := -1
		for _, key := range identityKeys(rec) {
			if s, ok := claims[key]; ok {
				slot = s
				break
			}
		}

		if slot < 0 {
			slots = append(slots, rec)
			claimAll(rec, len(slots)-1)
			continue
		}

		if wins(rec, slots[slot], prioritize) {
			slots[slot] = rec
		}
		// The loser's keys still name this identity; claim them so later
		// records chained through a different key collapse into the same slot.
		claimAll(rec, slot)
	}

	return slots
}

func wins(challenger, incumbent internal.Quotation, prioritize Prioritize) bool {
	_ = prioritize // only the "newest" policy exists

	ct, it := recordTime(challenger), recordTime(incumbent)
	if !ct.Equal(it) {
		return ct.After(it)
	}
	// Equal timestamps: prefer server-confirmed identity over a local draft.
	return challenger.RemoteID != "" && incumbent.RemoteID == ""
}
