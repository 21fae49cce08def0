package dashboard

import (
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// DateRange is a span of whole days, [Start, Until).
type DateRange struct {
	Start time.Time // first instant of the start day
	End   time.Time // first instant of the end day
	Until time.Time // first instant of the day after End
}

// NewDateRange widens start and end to whole days in their own locations.
func NewDateRange(start, end time.Time) DateRange {
	last := startOfDay(end)
	return DateRange{
		Start: startOfDay(start),
		End:   last,
		Until: last.AddDate(0, 0, 1),
	}
}

// Contains includes every instant of the end day, down to the nanosecond.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.Until)
}

// overlapsMonth reports whether the calendar month beginning at monthStart
// shares any instant with the range.
func (r DateRange) overlapsMonth(monthStart time.Time) bool {
	monthEnd := monthStart.AddDate(0, 1, 0)
	return monthStart.Before(r.Until) && monthEnd.After(r.Start)
}

// FilteredView is what the dashboard and the report present.
type FilteredView struct {
	Range mo.Option[DateRange]

	Products     []Product
	Orders       []Order
	Users        []User
	ProductSales []SalesShare
	Monthly      []MonthlyTotal

	TotalAmount float64 // unrounded
	OutOfStock  int
}

// Filtered reports whether a date range was applied.
func (v FilteredView) Filtered() bool {
	return v.Range.IsPresent()
}

func (v FilteredView) OrderCount() int   { return len(v.Orders) }
func (v FilteredView) ProductCount() int { return len(v.Products) }
func (v FilteredView) UserCount() int    { return len(v.Users) }

// OrdersByStatus counts the view's orders per status.
func (v FilteredView) OrdersByStatus() map[string]int {
	return lo.CountValuesBy(v.Orders, func(o Order) string { return o.Status })
}

// ApplyDateRange restricts orders and the monthly series to [start, end].
// When either bound is nil the view is the snapshot unchanged. Orders with no
// creation time are excluded from a ranged view, and so are monthly rows
// whose label cannot be parsed. The total is recomputed from the kept orders.
func ApplyDateRange(s Snapshot, start, end *time.Time) FilteredView {
	view := FilteredView{
		Range:        mo.None[DateRange](),
		Products:     s.Products,
		Orders:       s.Orders,
		Users:        s.Users,
		ProductSales: s.ProductSales,
		Monthly:      s.Monthly,
		TotalAmount:  s.TotalAmount,
		OutOfStock:   s.OutOfStock,
	}
	if start == nil || end == nil {
		return view
	}

	r := NewDateRange(*start, *end)
	view.Range = mo.Some(r)

	view.Orders = lo.Filter(s.Orders, func(o Order, _ int) bool {
		t, ok := o.CreatedAt.Get()
		return ok && r.Contains(t)
	})
	view.TotalAmount = sumTotals(view.Orders)

	view.Monthly = lo.Filter(s.Monthly, func(m MonthlyTotal, _ int) bool {
		month, ok := ParseMonthLabel(m.Label).Get()
		return ok && r.overlapsMonth(month)
	})

	return view
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
