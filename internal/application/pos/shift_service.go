package pos

import (
	"context"
	"errors"
	"time"

	appshared "github.com/flora/backend/internal/application/shared"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ShiftService opens and closes POS shifts
type ShiftService struct {
	shifts         pos.ShiftRepository
	scope          appshared.TransactionScope
	locker         shared.Locker
	lockTTL        time.Duration
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewShiftService creates a new ShiftService
func NewShiftService(shifts pos.ShiftRepository, scope appshared.TransactionScope, locker shared.Locker, lockTTL time.Duration, logger *zap.Logger) *ShiftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShiftService{shifts: shifts, scope: scope, locker: locker, lockTTL: lockTTL, logger: logger}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ShiftService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Open starts a shift. Only one shift may be open.
func (s *ShiftService) Open(ctx context.Context, req OpenShiftRequest, operatorID uuid.UUID) (*ShiftResponse, error) {
	release, err := obtainLock(ctx, s.locker, shiftLockKey, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	var shift *pos.Shift
	err = s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		_, err := repos.Shifts().FindOpen(ctx)
		if err == nil {
			return ErrShiftAlreadyOpen
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		shift, err = pos.OpenShift(operatorID, req.OpeningCash)
		if err != nil {
			return err
		}
		return repos.Shifts().Save(ctx, shift)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shift opened",
		zap.String("number", shift.Number),
		zap.String("opened_by", operatorID.String()),
		zap.String("opening_cash", shift.OpeningCash.String()),
	)
	appshared.PublishEvents(ctx, s.eventPublisher, shift)

	resp := ToShiftResponse(shift)
	return &resp, nil
}

// Current returns the open shift with live totals, or nil when none is open
func (s *ShiftService) Current(ctx context.Context) (*ShiftResponse, error) {
	var resp *ShiftResponse
	err := s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		shift, err := repos.Shifts().FindOpen(ctx)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		txns, err := repos.Transactions().FindByShift(ctx, shift.ID)
		if err != nil {
			return err
		}
		shift.ShiftSummary = pos.Summarize(shift.ID, txns)
		shift.ExpectedCash = shift.OpeningCash.Add(shift.CashTotal)
		r := ToShiftResponse(shift)
		resp = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Close freezes the totals of the open shift. Fails with NO_OPEN_SHIFT when
// no shift is open.
func (s *ShiftService) Close(ctx context.Context, req CloseShiftRequest, operatorID uuid.UUID) (*ShiftResponse, error) {
	release, err := obtainLock(ctx, s.locker, shiftLockKey, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	var shift *pos.Shift
	err = s.scope.Execute(ctx, func(repos appshared.Repositories) error {
		var err error
		// the exclusive lock waits out sales still holding the shift
		shift, err = repos.Shifts().FindOpenForUpdate(ctx)
		if errors.Is(err, shared.ErrNotFound) {
			return ErrNoOpenShift
		}
		if err != nil {
			return err
		}
		txns, err := repos.Transactions().FindByShift(ctx, shift.ID)
		if err != nil {
			return err
		}
		if err := shift.Close(pos.Summarize(shift.ID, txns), req.ClosingCash, req.Notes, operatorID); err != nil {
			return err
		}
		return repos.Shifts().Save(ctx, shift)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shift closed",
		zap.String("number", shift.Number),
		zap.Int("sales", shift.SalesCount),
		zap.String("sales_total", shift.SalesTotal.String()),
		zap.String("net_total", shift.NetTotal.String()),
		zap.String("cash_difference", shift.CashDifference.String()),
	)
	appshared.PublishEvents(ctx, s.eventPublisher, shift)

	resp := ToShiftResponse(shift)
	return &resp, nil
}

// Get returns a shift by ID
func (s *ShiftService) Get(ctx context.Context, id uuid.UUID) (*ShiftResponse, error) {
	shift, err := s.shifts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToShiftResponse(shift)
	return &resp, nil
}

// List returns a page of shifts, newest first
func (s *ShiftService) List(ctx context.Context, filter ShiftListFilter) ([]ShiftResponse, int64, error) {
	f := shared.DefaultFilter()
	f.OrderBy = "opened_at"
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.Status != "" {
		f.Filters["status"] = filter.Status
	}

	shifts, total, err := s.shifts.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ShiftResponse, len(shifts))
	for i := range shifts {
		out[i] = ToShiftResponse(&shifts[i])
	}
	return out, total, nil
}
