package documents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophtasks/internal/common"
	"github.com/dmitrijs2005/gophtasks/internal/dbx"
	"github.com/dmitrijs2005/gophtasks/internal/server/models"
)

// PostgresRepository works over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) error {
	fields, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (id, path, owner_id, fields)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowContext(ctx, query, doc.ID, doc.Path, doc.OwnerID, fields).
		Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Merge(ctx context.Context, ownerID, path, id string, fields map[string]any) error {
	patch, err := encodeFields(fields)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET fields = fields || $4::jsonb, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND path = $3
	`
	res, err := r.db.ExecContext(ctx, query, id, ownerID, path, patch)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res.RowsAffected())
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, path, id string) error {
	query := `
		DELETE FROM documents
		WHERE id = $1 AND owner_id = $2 AND path = $3
	`
	res, err := r.db.ExecContext(ctx, query, id, ownerID, path)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res.RowsAffected())
}

func (r *PostgresRepository) List(ctx context.Context, ownerID, path string) ([]*models.Document, error) {
	query := `
		SELECT id, path, owner_id, fields, created_at, updated_at
		FROM documents
		WHERE owner_id = $1 AND path = $2
	`
	return r.query(ctx, query, ownerID, path)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Document, error) {
	query := `
		SELECT id, path, owner_id, fields, created_at, updated_at
		FROM documents
	`
	return r.query(ctx, query)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Document, 0)
	for rows.Next() {
		var (
			doc models.Document
			raw []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Path, &doc.OwnerID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := json.Unmarshal(raw, &doc.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of document %s: %w", doc.ID, err)
		}
		result = append(result, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: fields are not JSON encodable: %v", common.ErrorValidation, err)
	}
	return string(b), nil
}

func expectOneRow(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
