package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"padoca/internal"
	"padoca/internal/analyze"
	"padoca/internal/board"
	"padoca/internal/config"
	"padoca/internal/export"
	"padoca/internal/inventory"
	"padoca/internal/listener"
	"padoca/internal/mail"
	gmailconnector "padoca/internal/mail/gmail"
	imapconnector "padoca/internal/mail/imap"
	"padoca/internal/quote"
	"padoca/internal/replies"
	"padoca/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "quote:send":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		supplierID := fs.String("supplier", "", "supplier id")
		itemIDs := fs.String("items", "", "comma-separated inventory item ids")
		subject := fs.String("subject", "", "email subject (optional)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*supplierID) == "" || strings.TrimSpace(*itemIDs) == "" {
			must(fmt.Errorf("--supplier and --items are required"))
		}

		b := loadBoard(cfg, db, log)
		req, err := buildSendRequest(db, *supplierID, splitIDs(*itemIDs), *subject)
		must(err)
		q, err := b.SendQuotation(context.Background(), req)
		must(err)
		fmt.Printf("quotation sent id=%s supplier=%s items=%d status=%s\n", q.ID, q.SupplierName, len(q.Items), q.Status)

	case "quote:list":
		b := loadBoard(cfg, db, log)
		for _, q := range b.Snapshot() {
			total := "-"
			if q.TotalQuote != nil {
				total = fmt.Sprintf("R$ %.2f", *q.TotalQuote)
			}
			fmt.Printf("%-16s %-10s %-24s items=%d total=%s\n", q.ID, q.Status, supplierLabel(q), len(q.Items), total)
		}

	case "quote:confirm":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "quotation id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		b := loadBoard(cfg, db, log)
		ord, err := b.ConfirmQuotation(*id)
		must(err)
		fmt.Printf("order created id=%s quotation=%s supplier=%s\n", ord.ID, ord.QuotationID, ord.SupplierName)

	case "quote:deliver":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "quotation id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		b := loadBoard(cfg, db, log)
		must(b.MarkDelivered(*id))
		fmt.Printf("quotation delivered id=%s\n", *id)

	case "quote:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "quotation id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		b := loadBoard(cfg, db, log)
		must(b.DeleteQuotation(*id))
		fmt.Printf("quotation deleted id=%s\n", *id)

	case "orders:list":
		b := loadBoard(cfg, db, log)
		remote, err := db.ListOrders()
		must(err)
		for _, ord := range b.ActiveOrders(remote) {
			fmt.Printf("%-40s %-22s quotation=%s supplier=%s\n", ord.ID, ord.Status, ord.QuotationID, ord.SupplierName)
		}

	case "inventory:alerts":
		b := loadBoard(cfg, db, log)
		items, err := db.ListInventory()
		must(err)
		alerts := inventory.PendingAlerts(items, b.Snapshot())
		if len(alerts) == 0 {
			fmt.Println("no pending restock alerts")
			return
		}
		for _, alert := range alerts {
			fmt.Printf("supplier=%s\n", alert.SupplierID)
			for _, item := range alert.Items {
				fmt.Printf("  %-20s stock=%.1f min=%.1f (%s)\n", item.Name, item.CurrentStock(), item.MinStock, inventory.Classify(item))
			}
		}

	case "replies:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.ListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.ListenerLabel, "mailbox/label")
		max := fs.Int("max", cfg.ListenerFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider, log)
		must(err)
		fetch := replies.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("replies fetched provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)

	case "replies:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batch := fs.Int("batch", cfg.ListenerProcessBatch, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := replies.NewService(db, analyze.New(cfg, log), log)
		processed, err := processor.ProcessPending(context.Background(), *batch)
		must(err)
		fmt.Printf("replies processed matched=%d\n", processed)

	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		path := strings.TrimSpace(*out)
		if path == "" {
			path = filepath.Join(cfg.OutputDir, fmt.Sprintf("cotacoes_%s.xlsx", time.Now().Format("20060102_150405")))
		}
		b := loadBoard(cfg, db, log)
		quotes := b.Snapshot()
		must(export.QuotationsToXLSX(quotes, path))
		fmt.Printf("exported %d quotations to %s\n", len(quotes), path)

	case "listen":
		b := loadBoard(cfg, db, log)
		processor := replies.NewService(db, analyze.New(cfg, log), log)
		svc, err := listener.NewService(db, cfg, b, processor, log)
		must(err)
		must(svc.Run(context.Background()))

	default:
		usage()
		os.Exit(1)
	}
}

// loadBoard assembles the board against the local store: the sqlite metadata
// table doubles as the durable cache, and the current document set seeds the
// first reconciliation.
func loadBoard(cfg config.Config, db *storage.DB, log *zap.Logger) *board.Board {
	b := board.New(db, db, makeMailer(cfg, log), nil, log, time.Duration(cfg.DuplicateWindowMin)*time.Minute)
	must(b.Load())

	docs, err := db.QuotationDocs()
	must(err)
	b.HandleSnapshot(docs)
	return b
}

func makeMailer(cfg config.Config, log *zap.Logger) mail.Mailer {
	if cfg.GmailClientID != "" && cfg.GmailClientSecret != "" && cfg.GmailRefreshToken != "" {
		conn, err := gmailconnector.NewConnector(cfg)
		if err == nil {
			return conn
		}
		log.Warn("gmail mailer unavailable, falling back to log mailer", zap.Error(err))
	}
	return mail.NewLogMailer(log)
}

func makeConnector(cfg config.Config, provider string, log *zap.Logger) (mail.Connector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func buildSendRequest(db *storage.DB, supplierID string, itemIDs []string, subject string) (quote.SendRequest, error) {
	suppliers, err := db.ListSuppliers()
	if err != nil {
		return quote.SendRequest{}, err
	}
	var supplier *internal.Supplier
	for i := range suppliers {
		if suppliers[i].ID == supplierID {
			supplier = &suppliers[i]
			break
		}
	}
	if supplier == nil {
		return quote.SendRequest{}, fmt.Errorf("supplier not found: %s", supplierID)
	}

	stock, err := db.ListInventory()
	if err != nil {
		return quote.SendRequest{}, err
	}
	byID := map[string]internal.InventoryItem{}
	for _, item := range stock {
		byID[item.ID] = item
	}

	items := make([]internal.QuoteItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, ok := byID[id]
		if !ok {
			return quote.SendRequest{}, fmt.Errorf("inventory item not found: %s", id)
		}
		toOrder := item.MaxStock - item.CurrentStock()
		if toOrder <= 0 {
			toOrder = item.PackageQty
		}
		items = append(items, internal.QuoteItem{
			ID:              item.ID,
			Name:            item.Name,
			Unit:            item.Unit,
			QuantityToOrder: toOrder,
			QuantityInStock: item.CurrentStock(),
		})
	}

	if strings.TrimSpace(subject) == "" {
		subject = fmt.Sprintf("Cotação de insumos - %s", time.Now().Format("02/01/2006"))
	}

	return quote.SendRequest{
		SupplierID:    supplier.ID,
		SupplierName:  supplier.Name,
		SupplierEmail: supplier.Email,
		Items:         items,
		Subject:       subject,
		Body:          quoteBody(supplier.Name, items),
	}, nil
}

// quoteBody renders the request the same way legacy records stored it: one
// bullet per item, so the line format stays recoverable from old cache data.
func quoteBody(supplierName string, items []internal.QuoteItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s,\n\nPoderiam nos enviar cotação dos itens abaixo?\n\n", supplierName)
	for _, item := range items {
		fmt.Fprintf(&b, "• %s: %.0f%s\n", item.Name, item.QuantityToOrder, item.Unit)
	}
	b.WriteString("\nAguardamos retorno com preços, prazo de entrega e condições de pagamento.\n\nObrigado!")
	return b.String()
}

func supplierLabel(q internal.Quotation) string {
	if q.SupplierName != "" {
		return q.SupplierName
	}
	if q.SupplierID != "" {
		return q.SupplierID
	}
	return q.SupplierEmail
}

func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func usage() {
	fmt.Println("usage: padoca <command>")
	fmt.Println("commands:")
	fmt.Println("  quote:send --supplier=sup_1 --items=farinha,fermento [--subject=...]")
	fmt.Println("  quote:list")
	fmt.Println("  quote:confirm --id=...")
	fmt.Println("  quote:deliver --id=...")
	fmt.Println("  quote:delete --id=...")
	fmt.Println("  orders:list")
	fmt.Println("  inventory:alerts")
	fmt.Println("  replies:fetch [--provider=gmail|imap] [--label=INBOX] [--max=20]")
	fmt.Println("  replies:process [--batch=20]")
	fmt.Println("  export:xlsx [--out=./out/cotacoes.xlsx]")
	fmt.Println("  listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
