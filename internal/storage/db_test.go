package storage

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"padoca/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "padoca.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSyncQuotationMergesFields(t *testing.T) {
	db := openTestDB(t)

	if err := db.SyncQuotation("q1", map[string]any{
		"supplierId":   "sup_1",
		"supplierName": "Moinho Anaconda",
		"status":       "enviado",
	}); err != nil {
		t.Fatalf("SyncQuotation: %v", err)
	}

	// A partial update must not wipe fields it does not mention.
	if err := db.SyncQuotation("q1", map[string]any{
		"status":  "cotado",
		"replyAt": "2026-02-10T09:00:00Z",
	}); err != nil {
		t.Fatalf("SyncQuotation update: %v", err)
	}

	docs, err := db.QuotationDocs()
	if err != nil {
		t.Fatalf("QuotationDocs: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	doc := docs[0]
	if doc["supplierName"] != "Moinho Anaconda" {
		t.Errorf("supplierName lost on partial update: %v", doc["supplierName"])
	}
	if doc["status"] != "cotado" {
		t.Errorf("status = %v, want cotado", doc["status"])
	}
	if doc["replyAt"] != "2026-02-10T09:00:00Z" {
		t.Errorf("replyAt = %v", doc["replyAt"])
	}
}

func TestSyncQuotationNilDeletesKey(t *testing.T) {
	db := openTestDB(t)

	if err := db.SyncQuotation("q1", map[string]any{"orderId": "ord_1", "status": "pedido_criado"}); err != nil {
		t.Fatalf("SyncQuotation: %v", err)
	}
	if err := db.SyncQuotation("q1", map[string]any{"orderId": nil}); err != nil {
		t.Fatalf("SyncQuotation: %v", err)
	}

	docs, err := db.QuotationDocs()
	if err != nil {
		t.Fatalf("QuotationDocs: %v", err)
	}
	if _, ok := docs[0]["orderId"]; ok {
		t.Errorf("orderId should have been removed, doc = %v", docs[0])
	}
}

func TestQuotationRevMovesOnWriteAndDelete(t *testing.T) {
	db := openTestDB(t)

	rev0, err := db.QuotationRev()
	if err != nil {
		t.Fatalf("QuotationRev: %v", err)
	}

	if err := db.SyncQuotation("q1", map[string]any{"status": "enviado"}); err != nil {
		t.Fatalf("SyncQuotation: %v", err)
	}
	rev1, _ := db.QuotationRev()
	if rev1 <= rev0 {
		t.Fatalf("rev did not advance on write: %d -> %d", rev0, rev1)
	}

	if err := db.DeleteQuotation("q1"); err != nil {
		t.Fatalf("DeleteQuotation: %v", err)
	}
	rev2, _ := db.QuotationRev()
	if rev2 == rev1 {
		t.Fatalf("rev did not move on delete: %d", rev2)
	}

	docs, _ := db.QuotationDocs()
	if len(docs) != 0 {
		t.Fatalf("expected empty collection after delete, got %d docs", len(docs))
	}
}

func TestUpsertReplyIdempotent(t *testing.T) {
	db := openTestDB(t)

	first, err := db.UpsertReply("gmail", "msg-1", "Re: Cotação", "vendas@moinho.com.br", "2026-02-10T09:00:00Z", "abc123", "/raw/msg-1.eml", "fetched")
	if err != nil {
		t.Fatalf("UpsertReply: %v", err)
	}
	second, err := db.UpsertReply("gmail", "msg-1", "Re: Cotação", "vendas@moinho.com.br", "2026-02-10T09:00:00Z", "abc123", "/raw/msg-1.eml", "fetched")
	if err != nil {
		t.Fatalf("UpsertReply again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("same provider+messageId produced two rows: %d vs %d", first.ID, second.ID)
	}

	if err := db.UpdateReplyStatus(first.ID, "processed"); err != nil {
		t.Fatalf("UpdateReplyStatus: %v", err)
	}
	pending, err := db.ListRepliesByStatus("fetched", 10)
	if err != nil {
		t.Fatalf("ListRepliesByStatus: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("processed reply still listed as fetched")
	}
}

func TestOrderLifecycle(t *testing.T) {
	db := openTestDB(t)

	ord := internal.Order{
		ID:          "ord_1",
		QuotationID: "q1",
		SupplierID:  "sup_1",
		Status:      internal.OrderPendingConfirmation,
	}
	if err := db.CreateOrder(ord); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := db.UpdateOrderStatus("ord_1", "confirmed", map[string]any{"confirmedAt": "2026-02-11T08:00:00Z"}); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	docs, err := db.OrderDocs()
	if err != nil {
		t.Fatalf("OrderDocs: %v", err)
	}
	if len(docs) != 1 || docs[0]["status"] != "confirmed" {
		t.Fatalf("unexpected order docs: %v", docs)
	}

	if err := db.UpdateOrderStatus("ord_missing", "confirmed", nil); err == nil {
		t.Errorf("expected error for unknown order id")
	}
}

func TestMetadataKV(t *testing.T) {
	db := openTestDB(t)

	if _, ok, err := db.Get("padoca.quotations"); err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := db.Set("padoca.quotations", `[]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := db.Get("padoca.quotations")
	if err != nil || !ok || v != `[]` {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if err := db.Set("padoca.quotations", `[{"id":"q1"}]`); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, _, _ = db.Get("padoca.quotations")
	if v != `[{"id":"q1"}]` {
		t.Errorf("overwrite lost: %q", v)
	}
}

func TestInventoryAndSuppliersRoundTrip(t *testing.T) {
	db := openTestDB(t)

	items := []internal.InventoryItem{
		{ID: "farinha", Name: "Farinha de Trigo", Unit: "kg", PackageQty: 25, PackageCount: 4, MinStock: 50, MaxStock: 200, SupplierID: "sup_1"},
		{ID: "fermento", Name: "Fermento Biológico", Unit: "kg", PackageQty: 0.5, PackageCount: 10, MinStock: 2, MaxStock: 10},
	}
	if err := db.UpsertInventoryItems(items); err != nil {
		t.Fatalf("UpsertInventoryItems: %v", err)
	}
	got, err := db.ListInventory()
	if err != nil {
		t.Fatalf("ListInventory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}

	sups := []internal.Supplier{{ID: "sup_1", Name: "Moinho Anaconda", Email: "vendas@moinho.com.br", ItemIDs: []string{"farinha"}}}
	if err := db.UpsertSuppliers(sups); err != nil {
		t.Fatalf("UpsertSuppliers: %v", err)
	}
	gotSups, err := db.ListSuppliers()
	if err != nil {
		t.Fatalf("ListSuppliers: %v", err)
	}
	if len(gotSups) != 1 || len(gotSups[0].ItemIDs) != 1 || gotSups[0].ItemIDs[0] != "farinha" {
		t.Fatalf("unexpected suppliers: %+v", gotSups)
	}
}

func TestSubscribeQuotationsSeesChangesAndStops(t *testing.T) {
	db := openTestDB(t)

	var mu sync.Mutex
	var calls [][]map[string]any
	stop, err := db.SubscribeQuotations(10*time.Millisecond, func(docs []map[string]any) {
		mu.Lock()
		calls = append(calls, docs)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("SubscribeQuotations: %v", err)
	}

	if err := db.SyncQuotation("q1", map[string]any{"status": "enviado"}); err != nil {
		t.Fatalf("SyncQuotation: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(calls)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never observed the write")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stop()
	mu.Lock()
	after := len(calls)
	mu.Unlock()

	if err := db.SyncQuotation("q2", map[string]any{"status": "enviado"}); err != nil {
		t.Fatalf("SyncQuotation: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	final := len(calls)
	mu.Unlock()
	if final != after {
		t.Errorf("callback fired after stop: %d -> %d", after, final)
	}
}
