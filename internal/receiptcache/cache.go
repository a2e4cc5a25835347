// Package receiptcache persists the last known purchase record in SQLite so
// a process can start from it before the purchase flow reports back.
package receiptcache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rcourtman/tunnelpass/pkg/licensing"
	_ "modernc.org/sqlite"
)

// ErrNotCached is returned by Load when no receipt has been saved.
var ErrNotCached = errors.New("no cached receipt")

const currentSlot = "current"

// Cache stores receipt snapshots and a log of every purchase line seen.
type Cache struct {
	db    *sql.DB
	nowFn func() time.Time
}

// HistoryEntry is one purchase line as first recorded in the cache.
type HistoryEntry struct {
	LineID     string
	Product    licensing.Product
	RecordedAt time.Time
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open receipt cache db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	c := &Cache{db: db, nowFn: time.Now}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS receipts (
		slot      TEXT PRIMARY KEY,
		body      TEXT NOT NULL,
		saved_at  INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS purchase_history (
		line_id     TEXT PRIMARY KEY,
		product_id  TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_purchase_history_product ON purchase_history(product_id);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("init receipt cache schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Save replaces the cached snapshot and records any purchase lines not seen
// before. Lines without an ID are kept in the snapshot only.
func (c *Cache) Save(receipt *licensing.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("receipt is nil")
	}
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	now := c.nowFn().UTC()

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save receipt: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO receipts (slot, body, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET body = excluded.body, saved_at = excluded.saved_at`,
		currentSlot, string(body), now.UnixNano(),
	); err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}

	for _, line := range receipt.Lines {
		if line.ID == "" {
			continue
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO purchase_history (line_id, product_id, recorded_at) VALUES (?, ?, ?)`,
			line.ID, line.Product.ID(), now.UnixNano(),
		); err != nil {
			return fmt.Errorf("record purchase %s: %w", line.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save receipt: %w", err)
	}
	return nil
}

// Load returns the cached snapshot and when it was saved.
func (c *Cache) Load() (*licensing.Receipt, time.Time, error) {
	var (
		body    string
		savedAt int64
	)
	err := c.db.QueryRow(`SELECT body, saved_at FROM receipts WHERE slot = ?`, currentSlot).Scan(&body, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotCached
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load receipt: %w", err)
	}

	var receipt licensing.Receipt
	if err := json.Unmarshal([]byte(body), &receipt); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode cached receipt: %w", err)
	}
	return &receipt, time.Unix(0, savedAt).UTC(), nil
}

// History lists recorded purchase lines, oldest first.
func (c *Cache) History() ([]HistoryEntry, error) {
	rows, err := c.db.Query(`SELECT line_id, product_id, recorded_at FROM purchase_history ORDER BY recorded_at, line_id`)
	if err != nil {
		return nil, fmt.Errorf("list purchase history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			entry      HistoryEntry
			productID  string
			recordedAt int64
		)
		if err := rows.Scan(&entry.LineID, &productID, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan purchase history: %w", err)
		}
		entry.Product = licensing.NewProduct(productID)
		entry.RecordedAt = time.Unix(0, recordedAt).UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase history: %w", err)
	}
	return out, nil
}

// Clear drops the cached snapshot. Purchase history is kept.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM receipts WHERE slot = ?`, currentSlot); err != nil {
		return fmt.Errorf("clear receipt: %w", err)
	}
	return nil
}

// Persist registers the cache on store so every mutation is saved. Save
// failures are reported to onError and do not affect the store.
func (c *Cache) Persist(store *licensing.ReceiptStore, onError func(error)) {
	store.OnChange(func(r *licensing.Receipt) {
		var err error
		if r == nil {
			err = c.Clear()
		} else {
			err = c.Save(r)
		}
		if err != nil && onError != nil {
			onError(err)
		}
	})
}
