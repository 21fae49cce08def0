package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/report"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDashboardFixture() (*DashboardService, *MockProductRepository, *MockOrderRepository, *MockAccountRepository) {
	products := &MockProductRepository{
		ListFunc: func(context.Context) ([]models.Product, error) {
			return []models.Product{
				{ID: "p1", Name: "Peony", Price: 8, Stock: 3},
				{ID: "p2", Name: "Orchid", Price: 20, Stock: 0},
			}, nil
		},
		SalesSharesFunc: func(context.Context) ([]models.ProductSalesShare, error) {
			return []models.ProductSalesShare{{Name: "Peony", Percent: 75}, {Name: "Orchid", Percent: 25}}, nil
		},
	}
	orders := &MockOrderRepository{
		ListFunc: func(context.Context) ([]models.Order, error) {
			return []models.Order{
				{ID: "o1", TotalPrice: lo.ToPtr(10.1), Status: models.OrderDelivered, CreatedAt: lo.ToPtr(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))},
				{ID: "o2", TotalPrice: lo.ToPtr(20.2), Status: models.OrderShipped, CreatedAt: lo.ToPtr(time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC))},
				{ID: "o3", Status: models.OrderProcessing},
			}, nil
		},
		MonthlySalesFunc: func(context.Context) ([]models.MonthlySales, error) {
			return []models.MonthlySales{{Month: "January 2024", Total: 10.1}, {Month: "February 2024", Total: 20.2}}, nil
		},
	}
	accounts := NewMockAccountRepository()
	accounts.Seed(models.Account{Email: "a@example.com"})

	svc := NewDashboardService(products, orders, accounts, 15, nil, newTestLogger())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc, products, orders, accounts
}

func TestLoadSnapshot(t *testing.T) {
	svc, _, _, _ := newDashboardFixture()

	snap, err := svc.LoadSnapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, snap.OrderCount())
	assert.Equal(t, 2, snap.ProductCount())
	assert.Equal(t, 1, snap.UserCount())
	assert.Equal(t, 1, snap.OutOfStock)
	assert.InDelta(t, 30.3, snap.TotalAmount, 1e-9)
	assert.Len(t, snap.Monthly, 2)
	assert.Len(t, snap.ProductSales, 2)
}

func TestLoadSnapshot_AnyFailureFailsTheLoad(t *testing.T) {
	failures := map[string]func(*MockProductRepository, *MockOrderRepository, *MockAccountRepository){
		"products": func(p *MockProductRepository, _ *MockOrderRepository, _ *MockAccountRepository) {
			p.ListFunc = func(context.Context) ([]models.Product, error) { return nil, errors.New("boom") }
		},
		"sales shares": func(p *MockProductRepository, _ *MockOrderRepository, _ *MockAccountRepository) {
			p.SalesSharesFunc = func(context.Context) ([]models.ProductSalesShare, error) { return nil, errors.New("boom") }
		},
		"orders": func(_ *MockProductRepository, o *MockOrderRepository, _ *MockAccountRepository) {
			o.ListFunc = func(context.Context) ([]models.Order, error) { return nil, errors.New("boom") }
		},
		"monthly": func(_ *MockProductRepository, o *MockOrderRepository, _ *MockAccountRepository) {
			o.MonthlySalesFunc = func(context.Context) ([]models.MonthlySales, error) { return nil, errors.New("boom") }
		},
		"users": func(_ *MockProductRepository, _ *MockOrderRepository, a *MockAccountRepository) {
			a.ListFunc = func(context.Context) ([]*models.Account, error) { return nil, errors.New("boom") }
		},
	}

	for name, breakIt := range failures {
		t.Run(name, func(t *testing.T) {
			svc, p, o, a := newDashboardFixture()
			breakIt(p, o, a)

			snap, err := svc.LoadSnapshot(context.Background())
			assert.ErrorIs(t, err, models.ErrInternalServer)
			assert.Zero(t, snap.OrderCount())
			assert.Zero(t, snap.ProductCount())
		})
	}
}

func TestLoadSnapshot_FetchesConcurrently(t *testing.T) {
	svc, p, o, a := newDashboardFixture()

	var started sync.WaitGroup
	started.Add(5)
	barrier := func(ctx context.Context) error {
		started.Done()
		done := make(chan struct{})
		go func() { started.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("fetches ran sequentially")
		}
	}

	p.ListFunc = func(ctx context.Context) ([]models.Product, error) { return nil, barrier(ctx) }
	p.SalesSharesFunc = func(ctx context.Context) ([]models.ProductSalesShare, error) { return nil, barrier(ctx) }
	o.ListFunc = func(ctx context.Context) ([]models.Order, error) { return nil, barrier(ctx) }
	o.MonthlySalesFunc = func(ctx context.Context) ([]models.MonthlySales, error) { return nil, barrier(ctx) }
	a.ListFunc = func(ctx context.Context) ([]*models.Account, error) { return nil, barrier(ctx) }

	_, err := svc.LoadSnapshot(context.Background())
	assert.NoError(t, err)
}

func TestView_FiltersByRange(t *testing.T) {
	svc, _, _, _ := newDashboardFixture()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	_, view, err := svc.View(context.Background(), &start, &end)
	require.NoError(t, err)

	assert.True(t, view.Filtered())
	assert.Equal(t, 1, view.OrderCount())
	assert.InDelta(t, 10.1, view.TotalAmount, 1e-9)
	require.Len(t, view.Monthly, 1)
	assert.Equal(t, "January 2024", view.Monthly[0].Label)
}

func TestOrders_TotalSkipsMissing(t *testing.T) {
	svc, _, _, _ := newDashboardFixture()

	orders, total, err := svc.Orders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 3)
	assert.InDelta(t, 30.3, total, 1e-9)
}

func TestReport(t *testing.T) {
	svc, _, _, _ := newDashboardFixture()
	ctx := context.Background()

	file, err := svc.Report(ctx, nil, nil, report.AllSections(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "dashboard-report-2024-03-01.pdf", file.Name)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF-")))

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	file, err = svc.Report(ctx, &start, &end, report.Sections{Orders: true}, "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "dashboard-report-2024-02-01-to-2024-02-29.xlsx", file.Name)

	_, err = svc.Report(ctx, nil, nil, report.AllSections(), "csv")
	assert.ErrorIs(t, err, models.ErrBadRequest)
	_, err = svc.Report(ctx, nil, nil, report.Sections{}, "pdf")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}
