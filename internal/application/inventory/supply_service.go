package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	appshared "github.com/flora/backend/internal/application/shared"
	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/spreadsheet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SupplyService plans, imports and receives flower supplies
type SupplyService struct {
	supplies       inventory.SupplyRepository
	scope          appshared.TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewSupplyService creates a new SupplyService
func NewSupplyService(supplies inventory.SupplyRepository, scope appshared.TransactionScope, logger *zap.Logger) *SupplyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupplyService{supplies: supplies, scope: scope, logger: logger}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *SupplyService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CreatePlanned records a supply that has not arrived yet
func (s *SupplyService) CreatePlanned(ctx context.Context, req CreateSupplyRequest) (*SupplyResponse, error) {
	rows := make([]inventory.SupplyRowInput, len(req.Rows))
	for i, r := range req.Rows {
		rows[i] = r.toInput()
	}
	return s.create(ctx, req.Supplier, req.ExpectedAt, req.Notes, rows)
}

func (s *SupplyService) create(ctx context.Context, supplier string, expectedAt *time.Time, notes string, rows []inventory.SupplyRowInput) (*SupplyResponse, error) {
	supply, err := inventory.NewSupply(supplier, expectedAt, rows)
	if err != nil {
		return nil, err
	}
	supply.Notes = strings.TrimSpace(notes)

	if err := s.supplies.Save(ctx, supply); err != nil {
		return nil, err
	}

	s.logger.Info("supply planned",
		zap.String("number", supply.Number),
		zap.Int("rows", len(supply.Rows)),
		zap.Int("total_quantity", supply.TotalQuantity()),
	)
	appshared.PublishEvents(ctx, s.eventPublisher, supply)

	resp := ToSupplyResponse(supply)
	return &resp, nil
}

// Import parses an .xlsx or .csv sheet into a planned supply. When any row
// is rejected nothing is saved and the row errors are returned.
func (s *SupplyService) Import(ctx context.Context, r io.Reader, req ImportSupplyRequest) (*ImportSupplyResponse, error) {
	sheet, err := spreadsheet.ParseSupplySheet(r, req.Filename)
	if err != nil {
		s.logger.Info("supply sheet unreadable", zap.String("filename", req.Filename), zap.Error(err))
		return nil, shared.NewDomainError("INVALID_SHEET", err.Error())
	}

	resp := &ImportSupplyResponse{
		TotalRows:  sheet.TotalRows,
		Errors:     sheet.Errors.Errors(),
		ErrorCount: sheet.Errors.TotalCount(),
		Truncated:  sheet.Errors.IsTruncated(),
	}
	if sheet.Errors.HasErrors() {
		s.logger.Info("supply import rejected",
			zap.String("filename", req.Filename),
			zap.Int("total_rows", sheet.TotalRows),
			zap.Int("errors", resp.ErrorCount),
		)
		return resp, nil
	}

	created, err := s.create(ctx, req.Supplier, req.ExpectedAt, req.Notes, sheet.Rows)
	if err != nil {
		return nil, err
	}
	resp.Supply = created
	resp.ImportedRows = len(created.Rows)
	return resp, nil
}

// Get returns a supply by ID
func (s *SupplyService) Get(ctx context.Context, id uuid.UUID) (*SupplyResponse, error) {
	supply, err := s.supplies.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSupplyResponse(supply)
	return &resp, nil
}

// List returns a page of supplies
func (s *SupplyService) List(ctx context.Context, filter SupplyListFilter) ([]SupplyResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	supplies, total, err := s.supplies.FindAll(ctx, inventory.SupplyFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		Status: inventory.SupplyStatus(filter.Status),
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]SupplyResponse, len(supplies))
	for i := range supplies {
		out[i] = ToSupplyResponse(&supplies[i])
	}
	return out, total, nil
}

// Cancel moves a planned supply to cancelled
func (s *SupplyService) Cancel(ctx context.Context, id uuid.UUID) (*SupplyResponse, error) {
	var supply *inventory.Supply
	err := s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		var err error
		supply, err = repos.Supplies().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := supply.Cancel(); err != nil {
			return err
		}
		return repos.Supplies().Save(ctx, supply)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("supply cancelled", zap.String("number", supply.Number))
	appshared.PublishEvents(ctx, s.eventPublisher, supply)

	resp := ToSupplyResponse(supply)
	return &resp, nil
}

// receiving tracks the flowers touched while a supply is received
type receiving struct {
	flowers map[string]*catalog.Flower
	order   []*catalog.Flower
	created map[uuid.UUID]bool // flowers inserted by this supply
	fresh   map[uuid.UUID]bool // variants inserted by this supply
}

func (rc *receiving) remember(key string, f *catalog.Flower) {
	if _, ok := rc.flowers[key]; ok {
		return
	}
	rc.flowers[key] = f
	for _, seen := range rc.order {
		if seen.ID == f.ID {
			return
		}
	}
	rc.order = append(rc.order, f)
}

// Receive books a planned supply into stock. Each row resolves its flower by
// ID, then by the slug of its name, creating the flower when neither exists.
// The variant of the row length is created when missing. Stock increases and
// supply movements are written in the same transaction.
func (s *SupplyService) Receive(ctx context.Context, id uuid.UUID, operatorID *uuid.UUID) (*SupplyResponse, error) {
	var (
		supply *inventory.Supply
		rc     = &receiving{
			flowers: make(map[string]*catalog.Flower),
			created: make(map[uuid.UUID]bool),
			fresh:   make(map[uuid.UUID]bool),
		}
	)

	err := s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		var err error
		supply, err = repos.Supplies().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if supply.Status != inventory.SupplyStatusPlanned {
			return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot receive supply in %s status", supply.Status))
		}

		rowFlowers := make([]*catalog.Flower, len(supply.Rows))
		for i := range supply.Rows {
			f, err := s.resolveFlower(ctx, repos, rc, &supply.Rows[i])
			if err != nil {
				return fmt.Errorf("rows[%d]: %w", i, err)
			}
			rowFlowers[i] = f
			if f.VariantByLength(supply.Rows[i].Length) == nil {
				v, err := f.AddVariant(supply.Rows[i].Length, valueOr(supply.Rows[i].SalePrice, decimal.Zero), 0)
				if err != nil {
					return fmt.Errorf("rows[%d]: %w", i, err)
				}
				rc.fresh[v.ID] = true
			}
		}

		// lock persisted variants and take their stock from the locked rows
		var ids []uuid.UUID
		for _, f := range rc.order {
			for _, v := range f.Variants {
				if !rc.fresh[v.ID] {
					ids = append(ids, v.ID)
				}
			}
		}
		locked, err := repos.Variants().FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		for _, lv := range locked {
			for _, f := range rc.order {
				if v := f.VariantByID(lv.ID); v != nil {
					v.Stock = lv.Stock
					v.Price = lv.Price
				}
			}
		}

		touched := make(map[uuid.UUID]bool)
		var movements []*inventory.StockMovement
		for i := range supply.Rows {
			row := &supply.Rows[i]
			f := rowFlowers[i]
			v := f.VariantByLength(row.Length)

			before := v.Stock
			if err := v.Increase(row.Quantity); err != nil {
				return fmt.Errorf("rows[%d]: %w", i, err)
			}
			if row.SalePrice != nil {
				if err := v.SetPrice(*row.SalePrice); err != nil {
					return fmt.Errorf("rows[%d]: %w", i, err)
				}
			}
			m, err := inventory.NewStockMovement(inventory.MovementInput{
				VariantID:     v.ID,
				FlowerID:      f.ID,
				Type:          inventory.MovementTypeSupply,
				Quantity:      row.Quantity,
				BalanceBefore: before,
				SourceType:    inventory.SourceSupply,
				SourceID:      supply.ID,
				Reason:        supply.Number,
				OperatorID:    operatorID,
			})
			if err != nil {
				return fmt.Errorf("rows[%d]: %w", i, err)
			}
			movements = append(movements, m)

			flowerID, variantID := f.ID, v.ID
			row.FlowerID = &flowerID
			row.VariantID = &variantID
			touched[v.ID] = true
		}

		for _, f := range rc.order {
			if rc.created[f.ID] {
				if err := repos.Flowers().Save(ctx, f); err != nil {
					return err
				}
				continue
			}
			for i := range f.Variants {
				if !touched[f.Variants[i].ID] {
					continue
				}
				f.Variants[i].FlowerID = f.ID
				if err := repos.Variants().Save(ctx, &f.Variants[i]); err != nil {
					return err
				}
			}
		}
		if err := repos.Movements().Create(ctx, movements...); err != nil {
			return err
		}

		if err := supply.MarkReceived(operatorID); err != nil {
			return err
		}
		return repos.Supplies().Save(ctx, supply)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("supply received",
		zap.String("number", supply.Number),
		zap.Int("total_quantity", supply.TotalQuantity()),
		zap.Int("new_flowers", len(rc.created)),
		zap.Int("new_variants", len(rc.fresh)),
	)

	sources := []appshared.EventSource{supply}
	for _, f := range rc.order {
		sources = append(sources, f)
	}
	appshared.PublishEvents(ctx, s.eventPublisher, sources...)

	resp := ToSupplyResponse(supply)
	return &resp, nil
}

func (s *SupplyService) resolveFlower(ctx context.Context, repos appshared.Repositories, rc *receiving, row *inventory.SupplyRow) (*catalog.Flower, error) {
	if row.FlowerID != nil {
		key := "id:" + row.FlowerID.String()
		if f, ok := rc.flowers[key]; ok {
			return f, nil
		}
		f, err := repos.Flowers().FindByID(ctx, *row.FlowerID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("FLOWER_NOT_FOUND", fmt.Sprintf("Flower %s not found", row.FlowerID))
			}
			return nil, err
		}
		f = rc.canonical(f)
		rc.remember(key, f)
		return f, nil
	}

	slug := catalog.Slugify(row.FlowerName)
	key := "slug:" + slug
	if f, ok := rc.flowers[key]; ok {
		return f, nil
	}
	f, err := repos.Flowers().FindBySlug(ctx, slug)
	switch {
	case err == nil:
		f = rc.canonical(f)
	case errors.Is(err, shared.ErrNotFound):
		unique, err := catalog.UniqueSlug(ctx, row.FlowerName, func(ctx context.Context, candidate string) (bool, error) {
			for _, seen := range rc.order {
				if seen.Slug == candidate {
					return true, nil
				}
			}
			return repos.Flowers().ExistsBySlug(ctx, candidate, uuid.Nil)
		})
		if err != nil {
			return nil, err
		}
		f, err = catalog.NewFlower(row.FlowerName, unique)
		if err != nil {
			return nil, err
		}
		rc.created[f.ID] = true
	default:
		return nil, err
	}
	rc.remember(key, f)
	return f, nil
}

// canonical returns the already loaded copy of a flower so rows that reach
// the same flower by ID and by name share one instance
func (rc *receiving) canonical(f *catalog.Flower) *catalog.Flower {
	for _, seen := range rc.order {
		if seen.ID == f.ID {
			return seen
		}
	}
	return f
}

func valueOr(d *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if d == nil {
		return def
	}
	return *d
}
