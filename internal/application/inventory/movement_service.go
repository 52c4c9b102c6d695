package inventory

import (
	"context"

	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/shared"
)

// MovementService reads the stock ledger
type MovementService struct {
	movements inventory.StockMovementRepository
}

// NewMovementService creates a new MovementService
func NewMovementService(movements inventory.StockMovementRepository) *MovementService {
	return &MovementService{movements: movements}
}

// List returns a page of ledger rows filtered by variant, flower or source
func (s *MovementService) List(ctx context.Context, filter MovementListFilter) ([]MovementResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}
	to := filter.To
	if to != nil {
		// the end date is inclusive
		end := to.AddDate(0, 0, 1)
		to = &end
	}

	rows, total, err := s.movements.FindAll(ctx, inventory.MovementFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  "created_at",
			OrderDir: filter.OrderDir,
		},
		VariantID:  filter.VariantID,
		FlowerID:   filter.FlowerID,
		SourceType: filter.SourceType,
		SourceID:   filter.SourceID,
		Type:       inventory.MovementType(filter.Type),
		From:       filter.From,
		To:         to,
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]MovementResponse, len(rows))
	for i := range rows {
		out[i] = ToMovementResponse(&rows[i])
	}
	return out, total, nil
}
