package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseMonthLabel_Shapes(t *testing.T) {
	want := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)

	for _, label := range []string{
		"October 2024",
		"october 2024",
		"Oct 2024",
		"October, 2024",
		"Oct, 2024",
		"10-2024",
		"10/2024",
		"2024-10",
		"2024/10",
		"  October   2024 ",
	} {
		t.Run(label, func(t *testing.T) {
			got, ok := ParseMonthLabel(label).Get()
			assert.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseMonthLabel_SingleDigitMonth(t *testing.T) {
	got, ok := ParseMonthLabel("3-2024").Get()
	assert.True(t, ok)
	assert.Equal(t, time.March, got.Month())

	got, ok = ParseMonthLabel("3/2024").Get()
	assert.True(t, ok)
	assert.Equal(t, time.March, got.Month())
}

func TestParseMonthLabel_Unrecognized(t *testing.T) {
	for _, label := range []string{"garbage", "", "   ", "13-2024", "2024", "Octember 2024", "10-24"} {
		t.Run(label, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.True(t, ParseMonthLabel(label).IsAbsent())
			})
		})
	}
}
