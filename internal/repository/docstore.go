package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Collection provides JSON-document persistence on one postgres table with
// per-key atomic replace. Every table follows the same shape:
//
//	CREATE TABLE <name> (
//	    id         TEXT PRIMARY KEY,
//	    doc        JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Collection struct {
	db    *sqlx.DB
	table string
}

// NewCollection constructs a Collection bound to a table.
func NewCollection(db *sqlx.DB, table string) *Collection {
	return &Collection{db: db, table: table}
}

// Get unmarshals the document for id into out. Returns sql.ErrNoRows when the
// document does not exist.
func (c *Collection) Get(ctx context.Context, id string, out interface{}) error {
	var raw []byte
	query := fmt.Sprintf("SELECT doc FROM %s WHERE id = $1", c.table)
	if err := c.db.GetContext(ctx, &raw, query, id); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s document %s: %w", c.table, id, err)
	}
	return nil
}

// Put replaces the document for id atomically, inserting when absent.
func (c *Collection) Put(ctx context.Context, id string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document %s: %w", c.table, id, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`, c.table)
	if _, err := c.db.ExecContext(ctx, query, id, raw); err != nil {
		return fmt.Errorf("put %s document %s: %w", c.table, id, err)
	}
	return nil
}

// Patch merges the provided fields into the stored document. Returns
// sql.ErrNoRows when the document does not exist.
func (c *Collection) Patch(ctx context.Context, id string, fields map[string]interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s patch %s: %w", c.table, id, err)
	}
	query := fmt.Sprintf("UPDATE %s SET doc = doc || $2::jsonb, updated_at = now() WHERE id = $1", c.table)
	res, err := c.db.ExecContext(ctx, query, id, raw)
	if err != nil {
		return fmt.Errorf("patch %s document %s: %w", c.table, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("patch %s document %s: %w", c.table, id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the document for id. Missing documents are not an error.
func (c *Collection) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.table)
	if _, err := c.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s document %s: %w", c.table, id, err)
	}
	return nil
}

// All returns every raw document in the collection. Used by reconciliation
// scans; collections stay small enough (one document per person/thesis) that
// a full scan is acceptable.
func (c *Collection) All(ctx context.Context) ([][]byte, error) {
	var raws [][]byte
	query := fmt.Sprintf("SELECT doc FROM %s ORDER BY id", c.table)
	if err := c.db.SelectContext(ctx, &raws, query); err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.table, err)
	}
	return raws, nil
}

// Where returns raw documents whose top-level field equals the value.
func (c *Collection) Where(ctx context.Context, field, value string) ([][]byte, error) {
	var raws [][]byte
	query := fmt.Sprintf("SELECT doc FROM %s WHERE doc->>'%s' = $1 ORDER BY id", c.table, field)
	if err := c.db.SelectContext(ctx, &raws, query, value); err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", c.table, field, err)
	}
	return raws, nil
}
