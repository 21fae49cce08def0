package adminclient

import (
	"strconv"
	"strings"
	"time"

	"github.com/fleurease/fleurease-api/internal/dashboard"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// The parsers below accept what the API returns today and what older
// deployments returned: "_id" for ids, "totalPrice" or "total", numbers
// sent as strings. Anything missing stays nil and is settled by
// dashboard.Normalize.

func parseProducts(body []byte) []dashboard.RawProduct {
	return lo.Map(list(body, "products"), func(p gjson.Result, _ int) dashboard.RawProduct {
		var stock *int
		if f := number(p.Get("stock")); f != nil {
			stock = lo.ToPtr(int(*f))
		}
		return dashboard.RawProduct{
			ID:    id(p),
			Name:  p.Get("name").String(),
			Price: number(p.Get("price")),
			Stock: stock,
		}
	})
}

func parseOrders(body []byte) []dashboard.RawOrder {
	return lo.Map(list(body, "orders"), func(o gjson.Result, _ int) dashboard.RawOrder {
		total := number(o.Get("totalPrice"))
		if total == nil {
			total = number(o.Get("total"))
		}
		return dashboard.RawOrder{
			ID:         id(o),
			TotalPrice: total,
			Status:     first(o, "orderStatus", "status"),
			CreatedAt:  timestamp(o.Get("createdAt")),
			ItemCount:  len(o.Get("orderItems").Array()),
		}
	})
}

func parseUsers(body []byte) []dashboard.RawUser {
	return lo.Map(list(body, "users"), func(u gjson.Result, _ int) dashboard.RawUser {
		return dashboard.RawUser{
			ID:        id(u),
			Name:      u.Get("name").String(),
			Email:     u.Get("email").String(),
			Role:      u.Get("role").String(),
			CreatedAt: timestamp(u.Get("createdAt")),
		}
	})
}

func parseSalesShares(body []byte) []dashboard.SalesShare {
	return lo.Map(list(body, "totalPercentage"), func(s gjson.Result, _ int) dashboard.SalesShare {
		return dashboard.SalesShare{
			Name:    s.Get("name").String(),
			Percent: lo.FromPtr(number(s.Get("percent"))),
		}
	})
}

func parseMonthly(body []byte) []dashboard.MonthlyTotal {
	return lo.Map(list(body, "salesPerMonth"), func(m gjson.Result, _ int) dashboard.MonthlyTotal {
		return dashboard.MonthlyTotal{
			Label: m.Get("month").String(),
			Total: lo.FromPtr(number(m.Get("total"))),
		}
	})
}

// list returns the array at key, or nothing when the key is absent or not
// an array.
func list(body []byte, key string) []gjson.Result {
	v := gjson.GetBytes(body, key)
	if !v.IsArray() {
		return nil
	}
	return v.Array()
}

func id(r gjson.Result) string {
	return first(r, "id", "_id")
}

func first(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() && v.Type != gjson.Null {
			return v.String()
		}
	}
	return ""
}

func number(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		return lo.ToPtr(r.Float())
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func timestamp(r gjson.Result) *time.Time {
	if r.Type != gjson.String {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, r.Str); err == nil {
			return &t
		}
	}
	return nil
}
