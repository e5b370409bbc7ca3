package session

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophtasks/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophtasks/internal/dbx"
)

const (
	keyUserID       = "user_id"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// Store caches the tokens of the last session in the local database so the
// next run can resume it instead of creating a new anonymous user.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the cached identity, or nil when nothing is cached.
func (s *Store) Load(ctx context.Context) (*Identity, error) {
	repo := metadata.NewSQLiteRepository(s.db)

	values, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if values[keyAccessToken] == "" {
		return nil, nil
	}
	return &Identity{
		UserID:       values[keyUserID],
		AccessToken:  values[keyAccessToken],
		RefreshToken: values[keyRefreshToken],
	}, nil
}

// Save replaces the cached identity in one transaction.
func (s *Store) Save(ctx context.Context, id *Identity) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		for k, v := range map[string]string{
			keyUserID:       id.UserID,
			keyAccessToken:  id.AccessToken,
			keyRefreshToken: id.RefreshToken,
		} {
			if err := repo.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveTokens updates only the token pair, e.g. after a refresh.
func (s *Store) SaveTokens(ctx context.Context, accessToken, refreshToken string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, keyAccessToken, accessToken); err != nil {
			return err
		}
		return repo.Set(ctx, keyRefreshToken, refreshToken)
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return metadata.NewSQLiteRepository(s.db).Clear(ctx)
}
