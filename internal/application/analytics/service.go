package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/flora/backend/internal/domain/analytics"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/spreadsheet"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CachePrefix namespaces every analytics cache key
const CachePrefix = "analytics:"

// Cache stores serialized reports
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// OpenShiftFinder returns the open shift or shared.ErrNotFound
type OpenShiftFinder interface {
	FindOpen(ctx context.Context) (*pos.Shift, error)
}

// ShiftTransactions lists the transactions of a shift
type ShiftTransactions interface {
	FindByShift(ctx context.Context, shiftID uuid.UUID) ([]pos.Transaction, error)
}

// Options tune the reports
type Options struct {
	LowStockThreshold int
	TopFlowers        int
	CacheTTL          time.Duration
	Location          *time.Location
}

// Service builds dashboard, stock and sales reports
type Service struct {
	repo   analytics.Repository
	shifts OpenShiftFinder
	txns   ShiftTransactions
	cache  Cache
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a new analytics service. cache may be nil.
func NewService(repo analytics.Repository, shifts OpenShiftFinder, txns ShiftTransactions, cache Cache, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TopFlowers <= 0 {
		opts.TopFlowers = 10
	}
	return &Service{repo: repo, shifts: shifts, txns: txns, cache: cache, opts: opts, now: time.Now, logger: logger}
}

// Dashboard returns today's figures, pending payments, stock totals and the open shift
func (s *Service) Dashboard(ctx context.Context) (*analytics.Dashboard, error) {
	now := s.now().In(s.opts.Location)
	key := CachePrefix + "dashboard:" + now.Format("2006-01-02")

	var d analytics.Dashboard
	if s.cached(ctx, key, &d) {
		return &d, nil
	}

	today := analytics.Today(now)
	txns, err := s.repo.TransactionFacts(ctx, today.From, today.To)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ItemFacts(ctx, today.From, today.To)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.PendingPayments(ctx)
	if err != nil {
		return nil, err
	}
	levels, err := s.repo.VariantLevels(ctx)
	if err != nil {
		return nil, err
	}
	shift, err := s.currentShift(ctx)
	if err != nil {
		return nil, err
	}

	d = analytics.Dashboard{
		Date:            now.Format("2006-01-02"),
		Today:           analytics.SummarizeTotals(txns, items),
		PendingPayments: pending,
		Stock:           analytics.BuildStockReport(levels, s.opts.LowStockThreshold).Totals,
		CurrentShift:    shift,
		GeneratedAt:     now,
	}
	s.store(ctx, key, d)
	return &d, nil
}

func (s *Service) currentShift(ctx context.Context) (*analytics.ShiftInfo, error) {
	if s.shifts == nil {
		return nil, nil
	}
	shift, err := s.shifts.FindOpen(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	txns, err := s.txns.FindByShift(ctx, shift.ID)
	if err != nil {
		return nil, err
	}
	summary := pos.Summarize(shift.ID, txns)
	return &analytics.ShiftInfo{
		ID:         shift.ID,
		Number:     shift.Number,
		OpenedAt:   shift.OpenedAt,
		SalesCount: summary.SalesCount,
		SalesTotal: summary.SalesTotal,
		CashTotal:  summary.CashTotal,
	}, nil
}

// Stock returns per-flower stock and value with the low-stock list
func (s *Service) Stock(ctx context.Context) (*analytics.StockReport, error) {
	key := CachePrefix + "stock"

	var r analytics.StockReport
	if s.cached(ctx, key, &r) {
		return &r, nil
	}
	levels, err := s.repo.VariantLevels(ctx)
	if err != nil {
		return nil, err
	}
	r = analytics.BuildStockReport(levels, s.opts.LowStockThreshold)
	s.store(ctx, key, r)
	return &r, nil
}

// Sales returns the sales report of a period: day, week (default), month or year
func (s *Service) Sales(ctx context.Context, rawPeriod string) (*analytics.SalesReport, error) {
	period, err := analytics.ParsePeriod(rawPeriod)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.opts.Location)
	// the hour keeps day reports from being served stale past the bucket boundary
	key := CachePrefix + "sales:" + string(period) + ":" + now.Format("2006-01-02T15")

	var r analytics.SalesReport
	if s.cached(ctx, key, &r) {
		return &r, nil
	}

	w := period.Window(now)
	txns, err := s.repo.TransactionFacts(ctx, w.From, w.To)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ItemFacts(ctx, w.From, w.To)
	if err != nil {
		return nil, err
	}
	r = analytics.BuildSalesReport(period, w, txns, items, s.opts.TopFlowers)
	s.store(ctx, key, r)
	return &r, nil
}

// ExportDocument is a generated report file
type ExportDocument struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportSales renders the sales report of a period as an xlsx workbook
func (s *Service) ExportSales(ctx context.Context, rawPeriod string) (*ExportDocument, error) {
	report, err := s.Sales(ctx, rawPeriod)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteSalesReport(&buf, *report); err != nil {
		return nil, err
	}
	s.logger.Info("sales report exported", zap.String("period", string(report.Period)), zap.Int("bytes", buf.Len()))
	return &ExportDocument{
		Content:     buf.Bytes(),
		ContentType: spreadsheet.ContentTypeXLSX,
		Filename:    spreadsheet.SalesReportFilename(*report),
	}, nil
}

// Invalidate drops every cached report
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return nil
	}
	return s.cache.DeletePrefix(ctx, CachePrefix)
}

func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("discarding unreadable cached report", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to encode report for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, data, s.opts.CacheTTL); err != nil {
		s.logger.Warn("failed to cache report", zap.String("key", key), zap.Error(err))
	}
}
