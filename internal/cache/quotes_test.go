package cache

import (
	"testing"

	"padoca/internal"
)

func TestLoadQuotationsEmptyCache(t *testing.T) {
	kv := NewMemoryKV()
	quotes, err := LoadQuotations(kv)
	if err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 0 {
		t.Fatalf("expected empty list, got %+v", quotes)
	}
}

func TestLoadQuotationsCorruptJSON(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Set(QuotationsKey, `{"this is": not json`)
	quotes, err := LoadQuotations(kv)
	if err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 0 {
		t.Fatalf("corrupt cache must recover as empty, got %+v", quotes)
	}
}

func TestLoadQuotationsRoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	in := []internal.Quotation{{ID: "q1", SupplierID: "S1", Status: internal.StatusPending, Items: []internal.QuoteItem{{ID: "I1", Name: "Farinha"}}}}
	if err := SaveQuotations(kv, in); err != nil {
		t.Fatal(err)
	}
	out, err := LoadQuotations(kv)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "q1" || len(out[0].Items) != 1 {
		t.Fatalf("round trip lost data: %+v", out)
	}
}

func TestLoadQuotationsLegacyRecordRecovery(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Set(QuotationsKey, `[{"id":"q1","supplierId":"S1","status":"pending","body":"Bom dia,\n• Farinha: 50kg\n• Fermento: 2kg\nObrigado"}]`)

	quotes, err := LoadQuotations(kv)
	if err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 record, got %d", len(quotes))
	}
	items := quotes[0].Items
	if len(items) != 2 {
		t.Fatalf("expected 2 recovered items, got %+v", items)
	}
	if items[0].Name != "Farinha" || items[0].QuantityToOrder != 50 || items[0].Unit != "kg" {
		t.Fatalf("item 0: %+v", items[0])
	}
	if items[1].Name != "Fermento" || items[1].QuantityToOrder != 2 || items[1].Unit != "kg" {
		t.Fatalf("item 1: %+v", items[1])
	}
}

func TestRecoverItemsNamesOnlyFallback(t *testing.T) {
	items := RecoverItems("• Farinha orgânica: muita\n• Fermento")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", items)
	}
	if items[0].Name != "Farinha orgânica" || items[0].QuantityToOrder != 0 {
		t.Fatalf("item 0: %+v", items[0])
	}
	if items[1].Name != "Fermento" {
		t.Fatalf("item 1: %+v", items[1])
	}
}

func TestRecoverItemsNothingParses(t *testing.T) {
	if items := RecoverItems("apenas um parágrafo de texto corrido"); len(items) != 0 {
		t.Fatalf("expected no items, got %+v", items)
	}
}
