// Package report turns a dashboard view into a paginated PDF or an XLSX workbook.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fleurease/fleurease-api/internal/dashboard"
	"github.com/samber/lo"
)

const (
	DocumentTitle    = "FleurEase - Dashboard Report"
	DefaultOrdersCap = 15
	productNameLimit = 25
	orderIDLimit     = 8
)

// Sections selects which tables a report contains.
type Sections struct {
	Summary  bool
	Products bool
	Monthly  bool
	Orders   bool
}

func AllSections() Sections {
	return Sections{Summary: true, Products: true, Monthly: true, Orders: true}
}

func (s Sections) Empty() bool {
	return !s.Summary && !s.Products && !s.Monthly && !s.Orders
}

// ParseSections reads a comma-separated list such as "summary,orders".
// An empty list selects every section.
func ParseSections(csv string) (Sections, error) {
	names := lo.Compact(lo.Map(strings.Split(csv, ","), func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	}))
	if len(names) == 0 {
		return AllSections(), nil
	}

	var s Sections
	for _, name := range names {
		switch name {
		case "summary":
			s.Summary = true
		case "products", "product-sales":
			s.Products = true
		case "monthly", "sales-per-month":
			s.Monthly = true
		case "orders":
			s.Orders = true
		default:
			return Sections{}, fmt.Errorf("unknown report section %q", name)
		}
	}
	return s, nil
}

// Table is one titled grid of pre-formatted cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Document is everything a renderer needs.
type Document struct {
	Title  string
	Period string
	Tables []Table
}

// Build assembles the document for view. Unless a date range is applied, the
// orders table lists only the first ordersCap orders, matching the preview.
func Build(view dashboard.FilteredView, sections Sections, ordersCap int) Document {
	return Document{
		Title:  DocumentTitle,
		Period: PeriodLabel(view),
		Tables: BuildTables(view, sections, ordersCap),
	}
}

func BuildTables(view dashboard.FilteredView, sections Sections, ordersCap int) []Table {
	if ordersCap <= 0 {
		ordersCap = DefaultOrdersCap
	}

	var tables []Table
	if sections.Summary {
		tables = append(tables, Table{
			Title:   "Summary",
			Headers: []string{"Metric", "Value"},
			Rows: [][]string{
				{"Total Sales", money(view.TotalAmount)},
				{"Total Orders", fmt.Sprint(view.OrderCount())},
				{"Total Products", fmt.Sprint(view.ProductCount())},
				{"Total Users", fmt.Sprint(view.UserCount())},
				{"Out of Stock", fmt.Sprint(view.OutOfStock)},
			},
		})
	}
	if sections.Products {
		tables = append(tables, Table{
			Title:   "Product Sales",
			Headers: []string{"Product", "Share"},
			Rows: lo.Map(view.ProductSales, func(p dashboard.SalesShare, _ int) []string {
				return []string{truncate(p.Name, productNameLimit), fmt.Sprintf("%.2f%%", dashboard.Round2(p.Percent))}
			}),
		})
	}
	if sections.Monthly {
		tables = append(tables, Table{
			Title:   "Monthly Sales",
			Headers: []string{"Month", "Total"},
			Rows: lo.Map(view.Monthly, func(m dashboard.MonthlyTotal, _ int) []string {
				return []string{m.Label, money(m.Total)}
			}),
		})
	}
	if sections.Orders {
		orders := view.Orders
		if !view.Filtered() && len(orders) > ordersCap {
			orders = orders[:ordersCap]
		}
		tables = append(tables, Table{
			Title:   "Orders",
			Headers: []string{"Order ID", "Date", "Amount", "Status"},
			Rows: lo.Map(orders, func(o dashboard.Order, _ int) []string {
				date := "N/A"
				if t, ok := o.CreatedAt.Get(); ok {
					date = t.Format("2006-01-02")
				}
				amount := "N/A"
				if !o.TotalMissing {
					amount = money(o.Total)
				}
				return []string{truncate(o.ID, orderIDLimit), date, amount, o.Status}
			}),
		})
	}
	return tables
}

// PeriodLabel describes the date range of view.
func PeriodLabel(view dashboard.FilteredView) string {
	r, ok := view.Range.Get()
	if !ok {
		return "Period: All time"
	}
	return fmt.Sprintf("Period: %s to %s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

// Filename names the exported file after its range, or after today.
func Filename(view dashboard.FilteredView, today time.Time, ext string) string {
	if r, ok := view.Range.Get(); ok {
		return fmt.Sprintf("dashboard-report-%s-to-%s.%s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"), ext)
	}
	return fmt.Sprintf("dashboard-report-%s.%s", today.Format("2006-01-02"), ext)
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", dashboard.Round2(v))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
