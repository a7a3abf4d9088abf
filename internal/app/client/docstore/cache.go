package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"repairjournal/internal/domain/document"
)

type opKind string

const (
	opCreate opKind = "create"
	opUpdate opKind = "update"
	opDelete opKind = "delete"
)

// pendingOp - запись, сделанная без сети и ожидающая отправки
type pendingOp struct {
	Seq        int64
	Kind       opKind
	Collection document.Collection
	ID         string
	Data       json.RawMessage
	QueuedAt   time.Time
}

// cache держит файл в монопольном режиме SQLite: второй процесс получит SQLITE_BUSY
type cache struct {
	db *sql.DB
}

func openCache(path string) (*cache, error) {
	db, err := sql.Open("sqlite3", path+"?_locking_mode=EXCLUSIVE&_busy_timeout=100")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	c := &cache{db: db}
	if err := c.initTables(); err != nil {
		db.Close()
		if isLocked(err) {
			return nil, fmt.Errorf("%w: %v", ErrPersistenceFailedPrecondition, err)
		}
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return c, nil
}

func isLocked(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func (c *cache) initTables() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			author_uid TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		);

		CREATE TABLE IF NOT EXISTS pending (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			op TEXT NOT NULL,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT,
			queued_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	// запись захватывает монопольную блокировку до закрытия соединения
	_, err = c.db.Exec(`INSERT INTO meta (key, value) VALUES ('opened_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (c *cache) close() error {
	return c.db.Close()
}

// replace заменяет содержимое коллекции снимком сервера
func (c *cache) replace(ctx context.Context, col document.Collection, docs []document.Document) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, string(col)); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	for _, doc := range docs {
		if err := putDocument(ctx, tx, doc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putDocument(ctx context.Context, db execer, doc document.Document) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, author_uid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data = excluded.data,
			author_uid = excluded.author_uid,
			updated_at = excluded.updated_at`,
		string(doc.Collection), doc.ID, string(doc.Data), doc.AuthorUID,
		doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put document %s/%s: %w", doc.Collection, doc.ID, err)
	}
	return nil
}

func (c *cache) put(ctx context.Context, doc document.Document) error {
	return putDocument(ctx, c.db, doc)
}

func (c *cache) get(ctx context.Context, col document.Collection, id string) (document.Document, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT collection, id, data, author_uid, created_at, updated_at
		FROM documents WHERE collection = ? AND id = ?`, string(col), id)
	doc, err := scanCached(row)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, ErrNotFound
	}
	return doc, err
}

// merge применяет частичное обновление полей верхнего уровня
func (c *cache) merge(ctx context.Context, col document.Collection, id string, patch json.RawMessage, at time.Time) (document.Document, error) {
	doc, err := c.get(ctx, col, id)
	if err != nil {
		return document.Document{}, err
	}
	merged, err := mergeFields(doc.Data, patch)
	if err != nil {
		return document.Document{}, err
	}
	doc.Data = merged
	doc.UpdatedAt = at
	return doc, c.put(ctx, doc)
}

func (c *cache) remove(ctx context.Context, col document.Collection, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, string(col), id)
	if err != nil {
		return fmt.Errorf("remove document %s/%s: %w", col, id, err)
	}
	return nil
}

func (c *cache) list(ctx context.Context, col document.Collection) ([]document.Document, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT collection, id, data, author_uid, created_at, updated_at
		FROM documents WHERE collection = ?
		ORDER BY created_at DESC, id`, string(col))
	if err != nil {
		return nil, fmt.Errorf("list cached documents: %w", err)
	}
	defer rows.Close()

	docs := make([]document.Document, 0)
	for rows.Next() {
		doc, err := scanCached(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCached(row scanner) (document.Document, error) {
	var (
		doc                  document.Document
		col, data            string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&col, &doc.ID, &data, &doc.AuthorUID, &createdAt, &updatedAt); err != nil {
		return document.Document{}, err
	}
	doc.Collection = document.Collection(col)
	doc.Data = json.RawMessage(data)
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	doc.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return doc, nil
}

func (c *cache) enqueue(ctx context.Context, op pendingOp) error {
	var data any
	if op.Data != nil {
		data = string(op.Data)
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO pending (op, collection, id, data, queued_at) VALUES (?, ?, ?, ?, ?)`,
		string(op.Kind), string(op.Collection), op.ID, data, op.QueuedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("enqueue %s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
	}
	return nil
}

func (c *cache) pending(ctx context.Context) ([]pendingOp, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT seq, op, collection, id, data, queued_at FROM pending ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var ops []pendingOp
	for rows.Next() {
		var (
			op       pendingOp
			kind     string
			col      string
			data     sql.NullString
			queuedAt int64
		)
		if err := rows.Scan(&op.Seq, &kind, &col, &op.ID, &data, &queuedAt); err != nil {
			return nil, err
		}
		op.Kind = opKind(kind)
		op.Collection = document.Collection(col)
		if data.Valid {
			op.Data = json.RawMessage(data.String)
		}
		op.QueuedAt = time.Unix(0, queuedAt).UTC()
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (c *cache) dequeue(ctx context.Context, seq int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM pending WHERE seq = ?`, seq)
	return err
}

func (c *cache) pendingCount(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending`).Scan(&n)
	return n, err
}

// apply повторяет неотправленную запись поверх свежего снимка
func (c *cache) apply(ctx context.Context, op pendingOp, uid string) error {
	switch op.Kind {
	case opCreate:
		return c.put(ctx, document.Document{
			ID: op.ID, Collection: op.Collection, Data: op.Data, AuthorUID: uid,
			CreatedAt: op.QueuedAt, UpdatedAt: op.QueuedAt,
		})
	case opUpdate:
		_, err := c.merge(ctx, op.Collection, op.ID, op.Data, op.QueuedAt)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	case opDelete:
		return c.remove(ctx, op.Collection, op.ID)
	}
	return fmt.Errorf("unknown pending op %q", op.Kind)
}

func mergeFields(base, patch json.RawMessage) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if len(base) > 0 {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	}
	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	for k, v := range changes {
		fields[k] = v
	}
	return json.Marshal(fields)
}
