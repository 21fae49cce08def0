package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleurease/fleurease-api/internal/dashboard"
	"github.com/fleurease/fleurease-api/internal/metrics"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/report"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// ProductReader is the catalog side of the dashboard
type ProductReader interface {
	List(ctx context.Context) ([]models.Product, error)
	SalesShares(ctx context.Context) ([]models.ProductSalesShare, error)
}

// OrderReader is the order side of the dashboard
type OrderReader interface {
	List(ctx context.Context) ([]models.Order, error)
	MonthlySales(ctx context.Context) ([]models.MonthlySales, error)
}

// AccountLister lists every account
type AccountLister interface {
	List(ctx context.Context) ([]*models.Account, error)
}

// ReportFile is a rendered export ready to be served.
type ReportFile struct {
	Name        string
	ContentType string
	Body        []byte
}

// DashboardService loads the admin dashboard and renders its exports
type DashboardService struct {
	products  ProductReader
	orders    OrderReader
	accounts  AccountLister
	renderers map[string]report.Renderer
	ordersCap int
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       Clock
}

func NewDashboardService(products ProductReader, orders OrderReader, accounts AccountLister,
	ordersCap int, m *metrics.Metrics, logger *slog.Logger) *DashboardService {
	renderers := make(map[string]report.Renderer)
	for _, r := range []report.Renderer{report.NewPDFRenderer(), report.NewXLSXRenderer()} {
		renderers[r.Extension()] = r
	}
	return &DashboardService{
		products:  products,
		orders:    orders,
		accounts:  accounts,
		renderers: renderers,
		ordersCap: ordersCap,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// LoadSnapshot fetches the five collections concurrently. Any failure fails
// the whole load; a partial snapshot is never returned.
func (s *DashboardService) LoadSnapshot(ctx context.Context) (dashboard.Snapshot, error) {
	var raw dashboard.RawSnapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		products, err := s.products.List(gctx)
		if err != nil {
			return fmt.Errorf("products: %w", err)
		}
		raw.Products = lo.Map(products, func(p models.Product, _ int) dashboard.RawProduct {
			return dashboard.RawProduct{ID: p.ID, Name: p.Name, Price: lo.ToPtr(p.Price), Stock: lo.ToPtr(p.Stock)}
		})
		return nil
	})
	g.Go(func() error {
		orders, err := s.orders.List(gctx)
		if err != nil {
			return fmt.Errorf("orders: %w", err)
		}
		raw.Orders = lo.Map(orders, func(o models.Order, _ int) dashboard.RawOrder {
			return dashboard.RawOrder{
				ID:         o.ID,
				TotalPrice: o.TotalPrice,
				Status:     string(o.Status),
				CreatedAt:  o.CreatedAt,
				ItemCount:  len(o.Items),
			}
		})
		return nil
	})
	g.Go(func() error {
		accounts, err := s.accounts.List(gctx)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		raw.Users = lo.Map(accounts, func(a *models.Account, _ int) dashboard.RawUser {
			return dashboard.RawUser{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role, CreatedAt: lo.ToPtr(a.CreatedAt)}
		})
		return nil
	})
	g.Go(func() error {
		shares, err := s.products.SalesShares(gctx)
		if err != nil {
			return fmt.Errorf("product sales: %w", err)
		}
		raw.ProductSales = lo.Map(shares, func(p models.ProductSalesShare, _ int) dashboard.SalesShare {
			return dashboard.SalesShare{Name: p.Name, Percent: p.Percent}
		})
		return nil
	})
	g.Go(func() error {
		monthly, err := s.orders.MonthlySales(gctx)
		if err != nil {
			return fmt.Errorf("sales per month: %w", err)
		}
		raw.Monthly = lo.Map(monthly, func(m models.MonthlySales, _ int) dashboard.MonthlyTotal {
			return dashboard.MonthlyTotal{Label: m.Month, Total: m.Total}
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		s.metrics.SnapshotLoad(metrics.OutcomeError)
		s.logger.Error("failed to load dashboard", slog.Any("error", err))
		return dashboard.Snapshot{}, models.ErrInternalServer
	}

	s.metrics.SnapshotLoad(metrics.OutcomeOK)
	return dashboard.Normalize(raw), nil
}

// View loads a snapshot and narrows it to [start, end]. A nil bound means
// no filtering.
func (s *DashboardService) View(ctx context.Context, start, end *time.Time) (dashboard.Snapshot, dashboard.FilteredView, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return dashboard.Snapshot{}, dashboard.FilteredView{}, err
	}
	return snap, dashboard.ApplyDateRange(snap, start, end), nil
}

// Report renders the filtered view in the requested format (pdf or xlsx).
func (s *DashboardService) Report(ctx context.Context, start, end *time.Time, sections report.Sections, format string) (*ReportFile, error) {
	renderer, ok := s.renderers[format]
	if !ok || sections.Empty() {
		return nil, models.ErrBadRequest
	}

	_, view, err := s.View(ctx, start, end)
	if err != nil {
		return nil, err
	}

	doc := report.Build(view, sections, s.ordersCap)
	var buf bytes.Buffer
	if err := renderer.Render(&buf, doc); err != nil {
		s.logger.Error("failed to render report", slog.String("format", format), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	s.metrics.ReportRendered(format)

	return &ReportFile{
		Name:        report.Filename(view, s.now(), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}

func (s *DashboardService) Products(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		s.logger.Error("failed to list products", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return products, nil
}

// Orders returns every order and the unrounded sum of their totals.
// Orders without a total contribute nothing.
func (s *DashboardService) Orders(ctx context.Context) ([]models.Order, float64, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		s.logger.Error("failed to list orders", slog.Any("error", err))
		return nil, 0, models.ErrInternalServer
	}
	total := lo.SumBy(orders, func(o models.Order) float64 { return lo.FromPtr(o.TotalPrice) })
	return orders, total, nil
}

func (s *DashboardService) Users(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		s.logger.Error("failed to list accounts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return accounts, nil
}

func (s *DashboardService) ProductSales(ctx context.Context) ([]models.ProductSalesShare, error) {
	shares, err := s.products.SalesShares(ctx)
	if err != nil {
		s.logger.Error("failed to load product sales", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return shares, nil
}

func (s *DashboardService) SalesPerMonth(ctx context.Context) ([]models.MonthlySales, error) {
	monthly, err := s.orders.MonthlySales(ctx)
	if err != nil {
		s.logger.Error("failed to load monthly sales", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return monthly, nil
}
