// Package documents stores collection documents. A document belongs to one
// owner and one collection path; its fields are kept as JSONB.
package documents

import (
	"context"

	"github.com/dmitrijs2005/gophtasks/internal/server/models"
)

type Repository interface {
	// Create inserts doc and fills in CreatedAt/UpdatedAt.
	Create(ctx context.Context, doc *models.Document) error

	// Merge applies a partial field set to an existing document.
	// Returns common.ErrorNotFound when no document matches.
	Merge(ctx context.Context, ownerID, path, id string, fields map[string]any) error

	// Delete returns common.ErrorNotFound when no document matches.
	Delete(ctx context.Context, ownerID, path, id string) error

	// List returns every document of ownerID under path, in no particular order.
	List(ctx context.Context, ownerID, path string) ([]*models.Document, error)

	// ListAll returns every stored document.
	ListAll(ctx context.Context) ([]*models.Document, error)
}
