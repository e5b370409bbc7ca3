package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophtasks/internal/common"
	"github.com/dmitrijs2005/gophtasks/internal/logging"
	"github.com/dmitrijs2005/gophtasks/internal/server/models"
	"github.com/dmitrijs2005/gophtasks/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtasks/internal/server/watch"
	"github.com/google/uuid"
)

// Publisher receives a notification after every successful mutation.
type Publisher interface {
	Publish(key watch.Key)
}

// DocumentService implements create / merge / delete / snapshot over
// collection paths of the form "<app>/<collection>". Documents are scoped to
// their owner: one owner never sees or touches another owner's documents.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   Publisher
	logger      logging.Logger
}

func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager, publisher Publisher, logger logging.Logger) *DocumentService {
	return &DocumentService{
		db:          db,
		repomanager: m,
		publisher:   publisher,
		logger:      logger.With("module", "documents"),
	}
}

// Create stores a new document under path and returns it with the assigned ID.
func (s *DocumentService) Create(ctx context.Context, ownerID, path string, fields map[string]any) (*models.Document, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:      uuid.NewString(),
		Path:    path,
		OwnerID: ownerID,
		Fields:  fields,
	}
	if err := s.repomanager.Documents(s.db).Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("error creating document: %w", err)
	}

	s.logger.Debug(ctx, "document created", "id", doc.ID, "path", path)
	s.publisher.Publish(watch.Key{OwnerID: ownerID, Path: path})
	return doc, nil
}

// Update merges fields into the document; keys not in fields are kept.
func (s *DocumentService) Update(ctx context.Context, ownerID, path, id string, fields map[string]any) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: empty document id", common.ErrorValidation)
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", common.ErrorValidation)
	}

	if err := s.repomanager.Documents(s.db).Merge(ctx, ownerID, path, id, fields); err != nil {
		return fmt.Errorf("error updating document %s: %w", id, err)
	}

	s.logger.Debug(ctx, "document updated", "id", id, "path", path)
	s.publisher.Publish(watch.Key{OwnerID: ownerID, Path: path})
	return nil
}

func (s *DocumentService) Delete(ctx context.Context, ownerID, path, id string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: empty document id", common.ErrorValidation)
	}

	if err := s.repomanager.Documents(s.db).Delete(ctx, ownerID, path, id); err != nil {
		return fmt.Errorf("error deleting document %s: %w", id, err)
	}

	s.logger.Debug(ctx, "document deleted", "id", id, "path", path)
	s.publisher.Publish(watch.Key{OwnerID: ownerID, Path: path})
	return nil
}

// Snapshot returns the current documents of ownerID under path, unordered.
func (s *DocumentService) Snapshot(ctx context.Context, ownerID, path string) ([]*models.Document, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	docs, err := s.repomanager.Documents(s.db).List(ctx, ownerID, path)
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}
	return docs, nil
}

// All returns every stored document regardless of owner.
func (s *DocumentService) All(ctx context.Context) ([]*models.Document, error) {
	docs, err := s.repomanager.Documents(s.db).ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}
	return docs, nil
}

// ValidatePath accepts "<app>/<collection>" paths made of at least two
// non-empty segments.
func ValidatePath(path string) error {
	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return fmt.Errorf("%w: path %q must look like <app>/<collection>", common.ErrorValidation, path)
	}
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: path %q has an empty segment", common.ErrorValidation, path)
		}
	}
	return nil
}
