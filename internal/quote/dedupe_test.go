package quote

import (
	"reflect"
	"testing"
	"time"

	"padoca/internal"
)

func item(id string) internal.QuoteItem {
	return internal.QuoteItem{ID: id, Name: "item " + id}
}

func TestDeduplicateCompositeKeyAcrossSources(t *testing.T) {
	// A local draft and a remote copy of the same send share no id at all,
	// only supplier + item set.
	local := internal.Quotation{
		ID:         "1700000000000",
		SupplierID: "S1",
		Items:      []internal.QuoteItem{item("I1")},
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	remote := internal.Quotation{
		ID:         "rq_9",
		RemoteID:   "rq_9",
		SupplierID: "S1",
		Items:      []internal.QuoteItem{item("I1")},
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	out := Deduplicate([]internal.Quotation{local, remote}, PrioritizeNewest)
	if len(out) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(out))
	}
	// Equal timestamps: server-confirmed identity wins.
	if out[0].ID != "rq_9" {
		t.Fatalf("expected remote record to survive, got %q", out[0].ID)
	}
}

func TestDeduplicateNewestWins(t *testing.T) {
	older := internal.Quotation{ID: "a", SupplierID: "S1", Items: []internal.QuoteItem{item("I1")}, SentAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	newer := internal.Quotation{ID: "b", SupplierID: "S1", Items: []internal.QuoteItem{item("I1")}, SentAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)}

	out := Deduplicate([]internal.Quotation{newer, older}, PrioritizeNewest)
	if len(out) != 1 || out[0].ID != "b" {
		t.Fatalf("expected newest to survive, got %+v", out)
	}
}

func TestDeduplicatePreservesOrder(t *testing.T) {
	a := internal.Quotation{ID: "a", SupplierID: "S1", Items: []internal.QuoteItem{item("I1")}}
	b := internal.Quotation{ID: "b", SupplierID: "S2", Items: []internal.QuoteItem{item("I2")}}
	c := internal.Quotation{ID: "c", SupplierID: "S3", Items: []internal.QuoteItem{item("I3")}}

	out := Deduplicate([]internal.Quotation{a, b, c}, PrioritizeNewest)
	if len(out) != 3 || out[0].ID != "a" || out[1].ID != "b" || out[2].ID != "c" {
		t.Fatalf("order not preserved: %+v", out)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	records := []internal.Quotation{
		{ID: "1700000000000", SupplierID: "S1", Items: []internal.QuoteItem{item("I1")}},
		{ID: "rq_9", RemoteID: "rq_9", SupplierID: "S1", Items: []internal.QuoteItem{item("I1")}, SentAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		{ID: "other", SupplierID: "S2", Items: []internal.QuoteItem{item("I5")}},
		{ID: "other", SupplierID: "S2", Items: []internal.QuoteItem{item("I5")}},
	}

	once := Deduplicate(records, PrioritizeNewest)
	twice := Deduplicate(once, PrioritizeNewest)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestDeduplicateNoSharedIdentitySurvives(t *testing.T) {
	records := []internal.Quotation{
		{ID: "a", RemoteID: "rq_1", SupplierID: "S1", Items: []internal.QuoteItem{item("I1"), item("I2")}},
		{ID: "b", RemoteID: "rq_1", SupplierID: "S9", Items: []internal.QuoteItem{item("I9")}},
		{ID: "c", SupplierID: "S1", Items: []internal.QuoteItem{item("I2"), item("I1")}},
		{ID: "a", SupplierID: "S7"},
	}

	out := Deduplicate(records, PrioritizeNewest)
	seenLocal := map[string]bool{}
	seenRemote := map[string]bool{}
	seenComposite := map[string]bool{}
	for _, q := range out {
		if q.ID != "" {
			if seenLocal[q.ID] {
				t.Fatalf("duplicate local id %q survived", q.ID)
			}
			seenLocal[q.ID] = true
		}
		if q.RemoteID != "" {
			if seenRemote[q.RemoteID] {
				t.Fatalf("duplicate remote id %q survived", q.RemoteID)
			}
			seenRemote[q.RemoteID] = true
		}
		if ck := CompositeKey(q.SupplierID, q.ItemIDs()); ck != "" {
			if seenComposite[ck] {
				t.Fatalf("duplicate composite key %q survived", ck)
			}
			seenComposite[ck] = true
		}
	}
	if len(out) >= len(records) {
		t.Fatalf("nothing was collapsed: %d -> %d", len(records), len(out))
	}
}
