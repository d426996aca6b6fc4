package replies

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"padoca/internal/analyze"
	"padoca/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "padoca.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeRawReply(t *testing.T, body string) string {
	t.Helper()
	raw := strings.Join([]string{
		"From: Moinho Anaconda <vendas@moinho.com.br>",
		"To: compras@padoca.com.br",
		"Subject: Re: Cotação de insumos",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	path := filepath.Join(t.TempDir(), "reply.eml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func seedQuotation(t *testing.T, db *storage.DB, id string) {
	t.Helper()
	err := db.SyncQuotation(id, map[string]any{
		"supplierId":    "sup_1",
		"supplierName":  "Moinho Anaconda",
		"supplierEmail": "vendas@moinho.com.br",
		"status":        "enviado",
		"sentAt":        "2026-02-09T08:00:00Z",
		"items": []map[string]any{
			{"id": "farinha", "name": "Farinha de Trigo", "unit": "sc", "quantityToOrder": 4},
			{"id": "fermento", "name": "Fermento Biológico", "unit": "kg", "quantityToOrder": 2},
		},
	})
	if err != nil {
		t.Fatalf("seed quotation: %v", err)
	}
}

func TestProcessReplyFoldsQuoteIntoQuotation(t *testing.T) {
	db := openTestDB(t)
	seedQuotation(t, db, "rq_1")

	rawPath := writeRawReply(t, strings.Join([]string{
		"Segue cotação:",
		"Farinha de Trigo 25kg: R$ 89,90",
		"Fermento Biológico: R$ 45,00",
		"Total: R$ 449,60",
		"Entrega em 2 dias",
	}, "\n"))

	row, err := db.UpsertReply("gmail", "msg-1", "Re: Cotação de insumos", "Moinho Anaconda <vendas@moinho.com.br>", "2026-02-10T09:00:00Z", "h1", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(db, analyze.Heuristic{}, nil)
	res, err := svc.ProcessReply(context.Background(), row)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Matched || !res.HasQuote {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.QuotationID != "rq_1" {
		t.Fatalf("quotationId = %s", res.QuotationID)
	}

	docs, _ := db.QuotationDocs()
	if len(docs) != 1 {
		t.Fatalf("docs = %d", len(docs))
	}
	doc := docs[0]
	if doc["status"] != "cotado" {
		t.Errorf("status = %v, want cotado", doc["status"])
	}
	if doc["replyAt"] != "2026-02-10T09:00:00Z" {
		t.Errorf("replyAt = %v", doc["replyAt"])
	}
	if doc["totalQuote"] != 449.60 {
		t.Errorf("totalQuote = %v", doc["totalQuote"])
	}

	items, ok := doc["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items = %v", doc["items"])
	}
	first := items[0].(map[string]any)
	if first["unitPrice"] != 89.90 {
		t.Errorf("farinha unitPrice = %v", first["unitPrice"])
	}

	updated, err := db.GetReplyByProviderMessageID("gmail", "msg-1")
	if err != nil || updated == nil {
		t.Fatalf("reply row lookup: %v", err)
	}
	if updated.Status != "processed" {
		t.Errorf("reply status = %s", updated.Status)
	}
}

func TestProcessReplyAcknowledgementDoesNotAdvanceStatus(t *testing.T) {
	db := openTestDB(t)
	seedQuotation(t, db, "rq_1")

	rawPath := writeRawReply(t, "Recebemos sua solicitação e retornaremos em breve.")
	row, err := db.UpsertReply("gmail", "msg-2", "Re: Cotação", "vendas@moinho.com.br", "2026-02-10T10:00:00Z", "h2", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(db, analyze.Heuristic{}, nil)
	res, err := svc.ProcessReply(context.Background(), row)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Matched || res.HasQuote {
		t.Fatalf("unexpected result: %+v", res)
	}

	docs, _ := db.QuotationDocs()
	if docs[0]["status"] != "enviado" {
		t.Errorf("acknowledgement advanced status to %v", docs[0]["status"])
	}
	if docs[0]["replyAt"] == nil {
		t.Error("reply should still be recorded")
	}
}

func TestProcessReplyUnmatchedSender(t *testing.T) {
	db := openTestDB(t)
	seedQuotation(t, db, "rq_1")

	rawPath := writeRawReply(t, "Farinha: R$ 80,00")
	row, err := db.UpsertReply("gmail", "msg-3", "Oferta", "spam@outra-empresa.com", "2026-02-10T11:00:00Z", "h3", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(db, analyze.Heuristic{}, nil)
	res, err := svc.ProcessReply(context.Background(), row)
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched {
		t.Fatal("unrelated sender must not match")
	}

	updated, _ := db.GetReplyByProviderMessageID("gmail", "msg-3")
	if updated.Status != "unmatched" {
		t.Errorf("reply status = %s", updated.Status)
	}
}

func TestProcessPendingBatch(t *testing.T) {
	db := openTestDB(t)
	seedQuotation(t, db, "rq_1")

	rawPath := writeRawReply(t, "Farinha de Trigo: R$ 89,90\nFermento Biológico: R$ 45,00")
	if _, err := db.UpsertReply("gmail", "msg-4", "Re: Cotação", "vendas@moinho.com.br", "2026-02-10T12:00:00Z", "h4", rawPath, "fetched"); err != nil {
		t.Fatal(err)
	}

	svc := NewService(db, analyze.Heuristic{}, nil)
	processed, err := svc.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d", processed)
	}
}
