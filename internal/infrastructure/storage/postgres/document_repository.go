package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"repairjournal/internal/domain/document"
)

const documentColumns = `collection, id, data, author_uid, created_at, updated_at, deleted_at`

type DocumentRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewDocumentRepository(db *Storage, log *slog.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:  db,
		log: log.With("component", "document_repository"),
	}
}

// Upsert записывает документ целиком; второй результат - true, если строка создана
func (r *DocumentRepository) Upsert(ctx context.Context, doc document.Document) (document.Document, bool, error) {
	const query = `
		INSERT INTO documents (collection, id, data, author_uid)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data,
		    author_uid = EXCLUDED.author_uid,
		    updated_at = NOW(),
		    deleted_at = NULL
		RETURNING ` + documentColumns + `, (xmax = 0) AS inserted`

	var inserted bool
	out, err := scanDocument(r.db.Pool().QueryRow(ctx, query,
		string(doc.Collection), doc.ID, []byte(doc.Data), doc.AuthorUID,
	), &inserted)
	if err != nil {
		r.log.Error("failed to upsert document",
			"collection", doc.Collection, "id", doc.ID, "error", err)
		return document.Document{}, false, fmt.Errorf("upsert document: %w", err)
	}
	return out, inserted, nil
}

// Update сливает patch с текущими полями документа
func (r *DocumentRepository) Update(ctx context.Context, col document.Collection, id string, patch json.RawMessage) (document.Document, error) {
	const query = `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING ` + documentColumns

	out, err := scanDocument(r.db.Pool().QueryRow(ctx, query, string(col), id, []byte(patch)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, document.ErrNotFound
		}
		r.log.Error("failed to update document", "collection", col, "id", id, "error", err)
		return document.Document{}, fmt.Errorf("update document: %w", err)
	}
	return out, nil
}

// Delete помечает документ удаленным; физически строки убирает PurgeDeleted
func (r *DocumentRepository) Delete(ctx context.Context, col document.Collection, id string) (document.Document, error) {
	const query = `
		UPDATE documents
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE collection = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING ` + documentColumns

	out, err := scanDocument(r.db.Pool().QueryRow(ctx, query, string(col), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, document.ErrNotFound
		}
		r.log.Error("failed to delete document", "collection", col, "id", id, "error", err)
		return document.Document{}, fmt.Errorf("delete document: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) List(ctx context.Context, col document.Collection) ([]document.Document, error) {
	const query = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE collection = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := r.db.Pool().Query(ctx, query, string(col))
	if err != nil {
		r.log.Error("failed to list documents", "collection", col, "error", err)
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]document.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool().Exec(ctx,
		`DELETE FROM documents WHERE deleted_at IS NOT NULL AND deleted_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDocument(row pgx.Row, extra ...any) (document.Document, error) {
	var (
		doc document.Document
		col string
		raw []byte
	)
	dest := append([]any{&col, &doc.ID, &raw, &doc.AuthorUID, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return document.Document{}, err
	}
	doc.Collection = document.Collection(col)
	doc.Data = json.RawMessage(raw)
	return doc, nil
}
