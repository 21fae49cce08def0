// Package dashboard aggregates back-office collections into a snapshot and
// derives date-filtered views from it. Nothing here performs IO.
package dashboard

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Raw* types carry data as it arrived from storage or over the wire. Any
// pointer field may be nil.
type RawProduct struct {
	ID    string
	Name  string
	Price *float64
	Stock *int
}

type RawOrder struct {
	ID         string
	TotalPrice *float64
	Status     string
	CreatedAt  *time.Time
	ItemCount  int
}

type RawUser struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt *time.Time
}

type SalesShare struct {
	Name    string
	Percent float64
}

type MonthlyTotal struct {
	Label string
	Total float64
}

type RawSnapshot struct {
	Products     []RawProduct
	Orders       []RawOrder
	Users        []RawUser
	ProductSales []SalesShare
	Monthly      []MonthlyTotal
}

type Product struct {
	ID    string
	Name  string
	Price float64
	Stock int
}

func (p Product) OutOfStock() bool {
	return p.Stock == 0
}

// Order is a normalized order. TotalMissing records that the source had no
// total and Total was taken as zero.
type Order struct {
	ID           string
	Total        float64
	TotalMissing bool
	Status       string
	CreatedAt    mo.Option[time.Time]
	ItemCount    int
}

type User struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt mo.Option[time.Time]
}

// Snapshot is the fully populated result of one dashboard load.
type Snapshot struct {
	Products     []Product
	Orders       []Order
	Users        []User
	ProductSales []SalesShare
	Monthly      []MonthlyTotal

	TotalAmount float64 // unrounded
	OutOfStock  int
}

// Normalize fills every gap in raw so later computation never checks for
// presence: missing totals become zero, missing stock counts as out of
// stock, missing timestamps become None.
func Normalize(raw RawSnapshot) Snapshot {
	s := Snapshot{
		Products: lo.Map(raw.Products, func(p RawProduct, _ int) Product {
			return Product{
				ID:    p.ID,
				Name:  strings.TrimSpace(p.Name),
				Price: lo.FromPtr(p.Price),
				Stock: lo.FromPtr(p.Stock),
			}
		}),
		Orders: lo.Map(raw.Orders, func(o RawOrder, _ int) Order {
			return Order{
				ID:           o.ID,
				Total:        finite(lo.FromPtr(o.TotalPrice)),
				TotalMissing: o.TotalPrice == nil,
				Status:       o.Status,
				CreatedAt:    mo.PointerToOption(o.CreatedAt),
				ItemCount:    o.ItemCount,
			}
		}),
		Users: lo.Map(raw.Users, func(u RawUser, _ int) User {
			return User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: mo.PointerToOption(u.CreatedAt)}
		}),
		ProductSales: lo.Map(raw.ProductSales, func(p SalesShare, _ int) SalesShare {
			return SalesShare{Name: p.Name, Percent: finite(p.Percent)}
		}),
		Monthly: lo.Map(raw.Monthly, func(m MonthlyTotal, _ int) MonthlyTotal {
			return MonthlyTotal{Label: strings.TrimSpace(m.Label), Total: finite(m.Total)}
		}),
	}

	s.TotalAmount = sumTotals(s.Orders)
	s.OutOfStock = lo.CountBy(s.Products, Product.OutOfStock)
	return s
}

func (s Snapshot) OrderCount() int   { return len(s.Orders) }
func (s Snapshot) ProductCount() int { return len(s.Products) }
func (s Snapshot) UserCount() int    { return len(s.Users) }

// RecentOrders returns up to n orders, newest first. Undated orders sort last.
func (s Snapshot) RecentOrders(n int) []Order {
	orders := append([]Order(nil), s.Orders...)
	sort.SliceStable(orders, func(i, j int) bool {
		return newer(orders[i].CreatedAt, orders[j].CreatedAt)
	})
	return orders[:min(n, len(orders))]
}

// RecentUsers returns up to n users, newest first.
func (s Snapshot) RecentUsers(n int) []User {
	users := append([]User(nil), s.Users...)
	sort.SliceStable(users, func(i, j int) bool {
		return newer(users[i].CreatedAt, users[j].CreatedAt)
	})
	return users[:min(n, len(users))]
}

// Round2 rounds half away from zero to cents. Apply it only when presenting.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sumTotals(orders []Order) float64 {
	return lo.SumBy(orders, func(o Order) float64 { return o.Total })
}

func newer(a, b mo.Option[time.Time]) bool {
	at, aok := a.Get()
	bt, bok := b.Get()
	switch {
	case aok && bok:
		return at.After(bt)
	default:
		return aok && !bok
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
