package quotes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStartOnAMonday(t *testing.T) {
	monday := time.Date(2025, time.June, 2, 15, 30, 0, 0, time.UTC)
	got := WeekStart(monday)
	assert.Equal(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC), got)
}

func TestWeekStartMidweek(t *testing.T) {
	thursday := time.Date(2025, time.June, 5, 8, 0, 0, 0, time.UTC)
	got := WeekStart(thursday)
	assert.Equal(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC), got)
}

func TestWeekStartOnSunday(t *testing.T) {
	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2025, time.June, 8, 23, 59, 0, 0, time.UTC)
	got := WeekStart(sunday)
	assert.Equal(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC), got)
}

func TestWeekStartIsStable(t *testing.T) {
	now := time.Now().UTC()
	start := WeekStart(now)
	assert.Equal(t, time.Monday, start.Weekday())
	assert.Equal(t, start, WeekStart(start))
	assert.Equal(t, start, WeekStart(start.AddDate(0, 0, 6)))
}
