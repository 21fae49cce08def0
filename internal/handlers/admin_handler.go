package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fleurease/fleurease-api/internal/dashboard"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/report"
	"github.com/fleurease/fleurease-api/internal/services"
	pkghttp "github.com/fleurease/fleurease-api/pkg/http"
	"github.com/samber/lo"
)

// DashboardServiceInterface defines the admin dashboard service contract.
type DashboardServiceInterface interface {
	Products(ctx context.Context) ([]models.Product, error)
	Orders(ctx context.Context) ([]models.Order, float64, error)
	ProductSales(ctx context.Context) ([]models.ProductSalesShare, error)
	SalesPerMonth(ctx context.Context) ([]models.MonthlySales, error)
	View(ctx context.Context, start, end *time.Time) (dashboard.Snapshot, dashboard.FilteredView, error)
	Report(ctx context.Context, start, end *time.Time, sections report.Sections, format string) (*services.ReportFile, error)
}

// AdminHandler handles admin dashboard HTTP requests.
type AdminHandler struct {
	service DashboardServiceInterface
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service DashboardServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

const dateLayout = "2006-01-02"

// Response DTOs. Field names match what the storefront admin pages read.

type OrderItemResponse struct {
	Product  string  `json:"product,omitempty"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type OrderResponse struct {
	ID         string              `json:"id"`
	User       string              `json:"user,omitempty"`
	TotalPrice *float64            `json:"totalPrice"`
	Status     string              `json:"orderStatus"`
	CreatedAt  *time.Time          `json:"createdAt"`
	Items      []OrderItemResponse `json:"orderItems"`
}

type SalesShareResponse struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

type MonthlySalesResponse struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

type RangeResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type RecentOrderResponse struct {
	ID        string     `json:"id"`
	Total     float64    `json:"total"`
	Status    string     `json:"orderStatus"`
	CreatedAt *time.Time `json:"createdAt"`
}

type RecentUserResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"createdAt"`
}

// DashboardResponse is the filtered dashboard. Money is rounded to cents.
type DashboardResponse struct {
	Range          *RangeResponse         `json:"range"`
	TotalAmount    float64                `json:"totalAmount"`
	OrderCount     int                    `json:"orderCount"`
	ProductCount   int                    `json:"productCount"`
	UserCount      int                    `json:"userCount"`
	OutOfStock     int                    `json:"outOfStock"`
	OrdersByStatus map[string]int         `json:"ordersByStatus"`
	ProductSales   []SalesShareResponse   `json:"productSales"`
	SalesPerMonth  []MonthlySalesResponse `json:"salesPerMonth"`
	RecentOrders   []RecentOrderResponse  `json:"recentOrders"`
	RecentUsers    []RecentUserResponse   `json:"recentUsers"`
}

// Products handles GET /admin/products
func (h *AdminHandler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Products(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{"products": toProductResponses(products)})
}

// Orders handles GET /admin/orders
func (h *AdminHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, total, err := h.service.Orders(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{
		"orders":      lo.Map(orders, func(o models.Order, _ int) OrderResponse { return toOrderResponse(o) }),
		"totalAmount": total,
	})
}

// ProductSales handles GET /admin/product-sales
func (h *AdminHandler) ProductSales(w http.ResponseWriter, r *http.Request) {
	shares, err := h.service.ProductSales(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{
		"totalPercentage": lo.Map(shares, func(s models.ProductSalesShare, _ int) SalesShareResponse {
			return SalesShareResponse{Name: s.Name, Percent: s.Percent}
		}),
	})
}

// SalesPerMonth handles GET /admin/sales-per-month
func (h *AdminHandler) SalesPerMonth(w http.ResponseWriter, r *http.Request) {
	monthly, err := h.service.SalesPerMonth(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{
		"salesPerMonth": lo.Map(monthly, func(m models.MonthlySales, _ int) MonthlySalesResponse {
			return MonthlySalesResponse{Month: m.Month, Total: m.Total}
		}),
	})
}

// Dashboard handles GET /admin/dashboard?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	snap, view, err := h.service.View(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	recentN := 3
	if n, err := strconv.Atoi(r.URL.Query().Get("recent")); err == nil && n > 0 && n <= 20 {
		recentN = n
	}

	resp := DashboardResponse{
		TotalAmount:    dashboard.Round2(view.TotalAmount),
		OrderCount:     view.OrderCount(),
		ProductCount:   view.ProductCount(),
		UserCount:      view.UserCount(),
		OutOfStock:     view.OutOfStock,
		OrdersByStatus: ordersByStatus(view),
		ProductSales: lo.Map(view.ProductSales, func(s dashboard.SalesShare, _ int) SalesShareResponse {
			return SalesShareResponse{Name: s.Name, Percent: dashboard.Round2(s.Percent)}
		}),
		SalesPerMonth: lo.Map(view.Monthly, func(m dashboard.MonthlyTotal, _ int) MonthlySalesResponse {
			return MonthlySalesResponse{Month: m.Label, Total: dashboard.Round2(m.Total)}
		}),
		RecentOrders: lo.Map(snap.RecentOrders(recentN), func(o dashboard.Order, _ int) RecentOrderResponse {
			return RecentOrderResponse{ID: o.ID, Total: dashboard.Round2(o.Total), Status: o.Status, CreatedAt: o.CreatedAt.ToPointer()}
		}),
		RecentUsers: lo.Map(snap.RecentUsers(recentN), func(u dashboard.User, _ int) RecentUserResponse {
			return RecentUserResponse{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt.ToPointer()}
		}),
	}
	if rng, ok := view.Range.Get(); ok {
		resp.Range = &RangeResponse{Start: rng.Start.Format(dateLayout), End: rng.End.Format(dateLayout)}
	}

	pkghttp.WriteOK(w, map[string]any{"dashboard": resp})
}

// Report handles GET /admin/dashboard/report?format=pdf|xlsx&sections=summary,orders
func (h *AdminHandler) Report(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	sections, err := report.ParseSections(q.Get("sections"))
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	format := q.Get("format")
	if format == "" {
		format = "pdf"
	}
	if format != "pdf" && format != "xlsx" {
		pkghttp.WriteBadRequest(w, "format must be one of: pdf xlsx")
		return
	}

	file, err := h.service.Report(r.Context(), start, end, sections, format)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}

// parseRange reads optional start and end dates. A missing bound means the
// view is not filtered. On bad input it writes a 400 and returns false.
func parseRange(w http.ResponseWriter, r *http.Request) (*time.Time, *time.Time, bool) {
	q := r.URL.Query()
	var start, end *time.Time
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start", &start}, {"end", &end}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			pkghttp.WriteBadRequest(w, p.name+" must be a date in YYYY-MM-DD format")
			return nil, nil, false
		}
		*p.dst = &t
	}
	if start != nil && end != nil && end.Before(*start) {
		pkghttp.WriteBadRequest(w, "start must not be after end")
		return nil, nil, false
	}
	return start, end, true
}

func toOrderResponse(o models.Order) OrderResponse {
	return OrderResponse{
		ID:         o.ID,
		User:       o.AccountID,
		TotalPrice: o.TotalPrice,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		Items: lo.Map(o.Items, func(it models.OrderItem, _ int) OrderItemResponse {
			return OrderItemResponse{Product: it.ProductID, Name: it.Name, Quantity: it.Quantity, Price: it.Price}
		}),
	}
}

// ordersByStatus reports every known status, zero when absent, plus any
// unknown status found in the data.
func ordersByStatus(view dashboard.FilteredView) map[string]int {
	counts := view.OrdersByStatus()
	for _, status := range models.OrderStatuses {
		if _, ok := counts[string(status)]; !ok {
			counts[string(status)] = 0
		}
	}
	return counts
}
