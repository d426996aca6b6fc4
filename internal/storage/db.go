// Package storage is the sqlite-backed document store behind the quotation and
// order collections, the raw-reply ledger, and the metadata table that doubles
// as the durable local cache.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"padoca/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS quotations (
  id TEXT PRIMARY KEY,
  supplierId TEXT,
  supplierEmail TEXT,
  status TEXT,
  orderId TEXT,
  rev INTEGER NOT NULL DEFAULT 0,
  raw_json TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_quotations_supplier ON quotations(supplierId);
CREATE INDEX IF NOT EXISTS idx_quotations_status ON quotations(status);
CREATE INDEX IF NOT EXISTS idx_quotations_rev ON quotations(rev);

CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  quotationId TEXT,
  status TEXT NOT NULL,
  rev INTEGER NOT NULL DEFAULT 0,
  raw_json TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_orders_quotation ON orders(quotationId);

CREATE TABLE IF NOT EXISTS inventory (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  unit TEXT,
  packageQty REAL NOT NULL DEFAULT 0,
  packageCount REAL NOT NULL DEFAULT 0,
  minStock REAL NOT NULL DEFAULT 0,
  maxStock REAL NOT NULL DEFAULT 0,
  supplierId TEXT,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS suppliers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  itemIds TEXT,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS replies (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SyncQuotation merge-upserts partial fields into a quotation document and
// bumps the collection revision, which is what subscription polling watches.
// A nil field value removes the key from the document.
func (d *DB) SyncQuotation(id string, fields map[string]any) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	doc := map[string]any{}
	var rawJSON string
	err = tx.QueryRow(`SELECT raw_json FROM quotations WHERE id = ?`, id).Scan(&rawJSON)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if rawJSON != "" {
		_ = json.Unmarshal([]byte(rawJSON), &doc)
	}

	doc["id"] = id
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}

	blob, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	rev, err := nextRev(tx, "quotations")
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
INSERT INTO quotations (id, supplierId, supplierEmail, status, orderId, rev, raw_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  supplierId=excluded.supplierId,
  supplierEmail=excluded.supplierEmail,
  status=excluded.status,
  orderId=excluded.orderId,
  rev=excluded.rev,
  raw_json=excluded.raw_json,
  updatedAt=CURRENT_TIMESTAMP
`, id, docString(doc, "supplierId"), docString(doc, "supplierEmail", "to"), docString(doc, "status"), docString(doc, "orderId"), rev, string(blob))
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (d *DB) DeleteQuotation(id string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM quotations WHERE id = ?`, id); err != nil {
		return err
	}
	// Deleting must still move the revision so subscribers notice.
	rev, err := nextRev(tx, "quotations")
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
INSERT INTO metadata (key, value) VALUES ('quotations.rev', ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, fmt.Sprintf("%d", rev)); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) QuotationDocs() ([]map[string]any, error) {
	return d.docs(`SELECT raw_json FROM quotations ORDER BY rowid ASC`)
}

// QuotationRev is the high-water mark subscribers poll against.
func (d *DB) QuotationRev() (int64, error) {
	var tableRev sql.NullInt64
	if err := d.conn.QueryRow(`SELECT MAX(rev) FROM quotations`).Scan(&tableRev); err != nil {
		return 0, err
	}
	rev := tableRev.Int64

	var deleted sql.NullString
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = 'quotations.rev'`).Scan(&deleted)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if deleted.Valid {
		var v int64
		if _, err := fmt.Sscanf(deleted.String, "%d", &v); err == nil && v > rev {
			rev = v
		}
	}
	return rev, nil
}

func (d *DB) CreateOrder(ord internal.Order) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	blob, err := json.Marshal(ord)
	if err != nil {
		return err
	}
	rev, err := nextRev(tx, "orders")
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
INSERT INTO orders (id, quotationId, status, rev, raw_json)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  quotationId=excluded.quotationId,
  status=excluded.status,
  rev=excluded.rev,
  raw_json=excluded.raw_json,
  updatedAt=CURRENT_TIMESTAMP
`, ord.ID, ord.QuotationID, string(ord.Status), rev, string(blob))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) OrderDocs() ([]map[string]any, error) {
	return d.docs(`SELECT raw_json FROM orders ORDER BY rowid ASC`)
}

// ListOrders decodes the orders collection into typed records.
func (d *DB) ListOrders() ([]internal.Order, error) {
	rows, err := d.conn.Query(`SELECT raw_json FROM orders ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Order
	for rows.Next() {
		var rawJSON string
		if err := rows.Scan(&rawJSON); err != nil {
			return nil, err
		}
		var ord internal.Order
		if err := json.Unmarshal([]byte(rawJSON), &ord); err != nil {
			continue
		}
		out = append(out, ord)
	}
	return out, rows.Err()
}

func (d *DB) OrderRev() (int64, error) {
	var rev sql.NullInt64
	if err := d.conn.QueryRow(`SELECT MAX(rev) FROM orders`).Scan(&rev); err != nil {
		return 0, err
	}
	return rev.Int64, nil
}

func (d *DB) UpdateOrderStatus(id, status string, extra map[string]any) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var rawJSON string
	err = tx.QueryRow(`SELECT raw_json FROM orders WHERE id = ?`, id).Scan(&rawJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order not found: %s", id)
	}
	if err != nil {
		return err
	}

	doc := map[string]any{}
	_ = json.Unmarshal([]byte(rawJSON), &doc)
	doc["status"] = status
	for k, v := range extra {
		doc[k] = v
	}

	blob, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	rev, err := nextRev(tx, "orders")
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE orders SET status = ?, rev = ?, raw_json = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, rev, string(blob), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) UpsertInventoryItems(items []internal.InventoryItem) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO inventory (id, name, unit, packageQty, packageCount, minStock, maxStock, supplierId, updatedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  name=excluded.name,
  unit=excluded.unit,
  packageQty=excluded.packageQty,
  packageCount=excluded.packageCount,
  minStock=excluded.minStock,
  maxStock=excluded.maxStock,
  supplierId=excluded.supplierId,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.Exec(it.ID, it.Name, it.Unit, it.PackageQty, it.PackageCount, it.MinStock, it.MaxStock, it.SupplierID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListInventory() ([]internal.InventoryItem, error) {
	rows, err := d.conn.Query(`
SELECT id, name, unit, packageQty, packageCount, minStock, maxStock, COALESCE(supplierId, '')
FROM inventory ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.InventoryItem
	for rows.Next() {
		var it internal.InventoryItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Unit, &it.PackageQty, &it.PackageCount, &it.MinStock, &it.MaxStock, &it.SupplierID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (d *DB) UpsertSuppliers(suppliers []internal.Supplier) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range suppliers {
		itemsJSON, _ := json.Marshal(s.ItemIDs)
		if _, err := tx.Exec(`
INSERT INTO suppliers (id, name, email, itemIds, updatedAt)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  name=excluded.name,
  email=excluded.email,
  itemIds=excluded.itemIds,
  updatedAt=CURRENT_TIMESTAMP
`, s.ID, s.Name, s.Email, string(itemsJSON)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListSuppliers() ([]internal.Supplier, error) {
	rows, err := d.conn.Query(`SELECT id, name, email, COALESCE(itemIds, '[]') FROM suppliers ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Supplier
	for rows.Next() {
		var s internal.Supplier
		var itemsJSON string
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &itemsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(itemsJSON), &s.ItemIDs)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) UpsertReply(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.ReplyRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO replies (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.ReplyRow{}, err
	}

	row, err := d.GetReplyByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.ReplyRow{}, err
	}
	if row == nil {
		return internal.ReplyRow{}, errors.New("failed to upsert reply")
	}
	return *row, nil
}

func (d *DB) GetReplyByProviderMessageID(provider, messageID string) (*internal.ReplyRow, error) {
	var row internal.ReplyRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM replies WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListRepliesByStatus(status string, limit int) ([]internal.ReplyRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM replies WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReplyRow
	for rows.Next() {
		var row internal.ReplyRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateReplyStatus(replyID int, status string) error {
	_, err := d.conn.Exec(`UPDATE replies SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, replyID)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// Get and Set make *DB usable as the durable local cache (cache.KV).
func (d *DB) Get(key string) (string, bool, error) {
	v, err := d.GetMetadata(key)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (d *DB) Set(key, value string) error {
	return d.SetMetadata(key, value)
}

func (d *DB) docs(query string) ([]map[string]any, error) {
	rows, err := d.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var rawJSON string
		if err := rows.Scan(&rawJSON); err != nil {
			return nil, err
		}
		doc := map[string]any{}
		if err := json.Unmarshal([]byte(rawJSON), &doc); err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func nextRev(tx *sql.Tx, table string) (int64, error) {
	var current sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(rev) FROM ` + table).Scan(&current); err != nil {
		return 0, err
	}
	return current.Int64 + 1, nil
}

func docString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
