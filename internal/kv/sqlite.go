package kv

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteTable implements Table on a local SQLite database. Each row holds
// the attribute map of one (pk, sk) pair as a JSON document.
type SQLiteTable struct {
	db *sqlx.DB
}

var _ Table = (*SQLiteTable)(nil)

type itemRow struct {
	PK    string `db:"pk"`
	SK    string `db:"sk"`
	Attrs string `db:"attrs"`
}

// NewSQLiteTable opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteTable(dbPath string) (*SQLiteTable, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	t := &SQLiteTable{db: db}
	if err := t.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return t, nil
}

// Close closes the underlying database connection.
func (t *SQLiteTable) Close() error {
	return t.db.Close()
}

// runMigrations applies every migration newer than the recorded schema
// version. Each migration runs in its own transaction.
func (t *SQLiteTable) runMigrations() error {
	applied, err := t.schemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= applied {
			continue
		}
		tx, err := t.db.Beginx()
		if err != nil {
			return fmt.Errorf("beginning migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// schemaVersion returns the highest applied migration, 0 on a fresh database.
func (t *SQLiteTable) schemaVersion() (int, error) {
	var exists bool
	err := t.db.Get(&exists,
		"SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'schema_version')")
	if err != nil {
		return 0, fmt.Errorf("checking schema_version table: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	if err := t.db.Get(&version, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// Get fetches a single row.
func (t *SQLiteTable) Get(ctx context.Context, key Key, projection []string) (Record, error) {
	var row itemRow
	err := t.db.GetContext(ctx, &row,
		"SELECT pk, sk, attrs FROM items WHERE pk = ? AND sk = ?", key.PK, key.SK)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("getting item %s/%s: %w", key.PK, key.SK, err)
	}
	attrs, err := decodeAttrs(row.Attrs)
	if err != nil {
		return Record{}, fmt.Errorf("decoding item %s/%s: %w", key.PK, key.SK, err)
	}
	return RecordFromAttributes(project(attrs, projection)), nil
}

// Put writes a whole row.
func (t *SQLiteTable) Put(ctx context.Context, rec Record, ifNotExists bool) error {
	doc, err := encodeAttrs(rec.Attributes())
	if err != nil {
		return fmt.Errorf("encoding item %s/%s: %w", rec.PK, rec.SK, err)
	}

	if !ifNotExists {
		_, err = t.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO items (pk, sk, attrs) VALUES (?, ?, ?)",
			rec.PK, rec.SK, doc)
		if err != nil {
			return fmt.Errorf("putting item %s/%s: %w", rec.PK, rec.SK, err)
		}
		return nil
	}

	res, err := t.db.ExecContext(ctx,
		"INSERT INTO items (pk, sk, attrs) VALUES (?, ?, ?) ON CONFLICT (pk, sk) DO NOTHING",
		rec.PK, rec.SK, doc)
	if err != nil {
		return fmt.Errorf("putting item %s/%s: %w", rec.PK, rec.SK, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking put of %s/%s: %w", rec.PK, rec.SK, err)
	}
	if n == 0 {
		return ErrConditionFailed
	}
	return nil
}

// Delete removes a row if present.
func (t *SQLiteTable) Delete(ctx context.Context, key Key) error {
	_, err := t.db.ExecContext(ctx, "DELETE FROM items WHERE pk = ? AND sk = ?", key.PK, key.SK)
	if err != nil {
		return fmt.Errorf("deleting item %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// Query returns the rows of pk whose sort key starts with skPrefix,
// ordered by sort key.
func (t *SQLiteTable) Query(ctx context.Context, pk, skPrefix string, opts QueryOptions) ([]Record, error) {
	query := `
		SELECT pk, sk, attrs FROM items
		WHERE pk = ? AND sk >= ? AND substr(sk, 1, ?) = ?
		ORDER BY sk`
	args := []any{pk, skPrefix, utf8.RuneCountInString(skPrefix), skPrefix}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []itemRow
	if err := t.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying %s/%s*: %w", pk, skPrefix, err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		attrs, err := decodeAttrs(row.Attrs)
		if err != nil {
			return nil, fmt.Errorf("decoding item %s/%s: %w", row.PK, row.SK, err)
		}
		records = append(records, RecordFromAttributes(project(attrs, opts.Projection)))
	}
	return records, nil
}

// BatchWrite applies puts and deletes in one transaction.
func (t *SQLiteTable) BatchWrite(ctx context.Context, puts []Record, deletes []Key) error {
	if len(puts)+len(deletes) == 0 {
		return nil
	}
	if len(puts)+len(deletes) > MaxBatchSize {
		return fmt.Errorf("%d writes: %w", len(puts)+len(deletes), ErrBatchTooLarge)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range puts {
		doc, err := encodeAttrs(rec.Attributes())
		if err != nil {
			return fmt.Errorf("encoding item %s/%s: %w", rec.PK, rec.SK, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO items (pk, sk, attrs) VALUES (?, ?, ?)",
			rec.PK, rec.SK, doc)
		if err != nil {
			return fmt.Errorf("putting item %s/%s: %w", rec.PK, rec.SK, err)
		}
	}
	for _, key := range deletes {
		_, err := tx.ExecContext(ctx, "DELETE FROM items WHERE pk = ? AND sk = ?", key.PK, key.SK)
		if err != nil {
			return fmt.Errorf("deleting item %s/%s: %w", key.PK, key.SK, err)
		}
	}

	return tx.Commit()
}

// Update applies a partial update inside a transaction, creating the row
// unless IfExists is set.
func (t *SQLiteTable) Update(ctx context.Context, key Key, upd Update) error {
	upd = upd.normalized()

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var doc string
	err = tx.GetContext(ctx, &doc, "SELECT attrs FROM items WHERE pk = ? AND sk = ?", key.PK, key.SK)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if upd.IfExists {
			return ErrConditionFailed
		}
		doc = "{}"
	case err != nil:
		return fmt.Errorf("reading item %s/%s: %w", key.PK, key.SK, err)
	}

	attrs, err := decodeAttrs(doc)
	if err != nil {
		return fmt.Errorf("decoding item %s/%s: %w", key.PK, key.SK, err)
	}
	attrs[AttrPK] = key.PK
	attrs[AttrSK] = key.SK

	for name, v := range upd.Set {
		attrs[name] = v
	}
	for _, name := range upd.Remove {
		delete(attrs, name)
	}
	for name, values := range upd.DeleteFromSet {
		remaining := subtract(setAttr(attrs[name]), values)
		if len(remaining) == 0 {
			delete(attrs, name)
			continue
		}
		attrs[name] = remaining
	}

	out, err := encodeAttrs(attrs)
	if err != nil {
		return fmt.Errorf("encoding item %s/%s: %w", key.PK, key.SK, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (pk, sk, attrs) VALUES (?, ?, ?)
		ON CONFLICT (pk, sk) DO UPDATE SET attrs = excluded.attrs, updated_at = CURRENT_TIMESTAMP`,
		key.PK, key.SK, out)
	if err != nil {
		return fmt.Errorf("updating item %s/%s: %w", key.PK, key.SK, err)
	}

	return tx.Commit()
}

func encodeAttrs(attrs map[string]any) (string, error) {
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeAttrs(doc string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
	dec.UseNumber()
	attrs := map[string]any{}
	if err := dec.Decode(&attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func subtract(set, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, v := range remove {
		drop[v] = struct{}{}
	}
	var out []string
	for _, v := range set {
		if _, ok := drop[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
