package dashboard

import (
	"strings"
	"time"

	"github.com/samber/mo"
)

var monthLayouts = []string{
	"January 2006",
	"Jan 2006",
	"January, 2006",
	"Jan, 2006",
	"01-2006",
	"1-2006",
	"01/2006",
	"1/2006",
	"2006-01",
	"2006/01",
}

// ParseMonthLabel reads a month label such as "October 2024", "Oct 2024",
// "October, 2024", "10-2024", "10/2024" or "2024-10" and returns the first
// instant of that month in UTC. Unrecognized input yields None.
func ParseMonthLabel(label string) mo.Option[time.Time] {
	normalized := strings.Join(strings.Fields(label), " ")
	if normalized == "" {
		return mo.None[time.Time]()
	}

	for _, layout := range monthLayouts {
		t, err := time.Parse(layout, normalized)
		if err == nil && t.Year() > 0 {
			return mo.Some(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC))
		}
	}
	return mo.None[time.Time]()
}
