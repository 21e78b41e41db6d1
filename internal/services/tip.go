package services

import (
	"context"

	"github.com/mkravtsov/cropsync/internal/models"
	"github.com/mkravtsov/cropsync/internal/repositories/tips"
)

// TipService reads the locally cached, server-authoritative tip feed. Tips
// are never mutated locally; the reconciliation engine replaces the cache
// wholesale on each pull.
type TipService interface {
	List(ctx context.Context) ([]models.Tip, error)
	Get(ctx context.Context, localID string) (*models.Tip, error)
}

type tipService struct {
	*core
}

func (s *tipService) List(ctx context.Context) ([]models.Tip, error) {
	return tips.NewSQLiteRepository(s.db).GetAll(ctx)
}

func (s *tipService) Get(ctx context.Context, localID string) (*models.Tip, error) {
	return tips.NewSQLiteRepository(s.db).GetByID(ctx, localID)
}
