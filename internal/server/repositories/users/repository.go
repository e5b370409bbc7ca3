// Package users persists session identities.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophtasks/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in CreatedAt.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetByID returns common.ErrorNotFound when no such user exists.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
