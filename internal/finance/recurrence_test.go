package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgavilanez/planea-api/internal/models"
)

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestNextDueDate(t *testing.T) {
	t.Run("one time always returns the start date", func(t *testing.T) {
		start := date(2025, 6, 15)
		got, err := NextDueDate(start, models.FrequencyOneTime, date(2030, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, start, got)
	})

	t.Run("start on or before asOf is due immediately", func(t *testing.T) {
		start := date(2025, 1, 10)
		got, err := NextDueDate(start, models.FrequencyMonthly, date(2025, 3, 1))
		require.NoError(t, err)
		assert.Equal(t, start, got)

		got, err = NextDueDate(start, models.FrequencyMonthly, start)
		require.NoError(t, err)
		assert.Equal(t, start, got)
	})

	t.Run("future start stays put", func(t *testing.T) {
		start := date(2025, 9, 1)
		got, err := NextDueDate(start, models.FrequencyWeekly, date(2025, 8, 1))
		require.NoError(t, err)
		assert.Equal(t, start, got)
	})

	t.Run("deterministic", func(t *testing.T) {
		start := date(2025, 1, 31)
		asOf := date(2025, 6, 15)
		a, err := NextDueDate(start, models.FrequencyQuarterly, asOf)
		require.NoError(t, err)
		b, err := NextDueDate(start, models.FrequencyQuarterly, asOf)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("unsupported frequency", func(t *testing.T) {
		_, err := NextDueDate(date(2025, 1, 1), "biweekly", date(2025, 1, 1))
		assert.ErrorIs(t, err, ErrUnsupportedFrequency)
	})
}

func TestNextDueDateAfterFiring(t *testing.T) {
	t.Run("weekly advances seven days", func(t *testing.T) {
		start := date(2025, 1, 6)
		got, err := NextDueDateAfterFiring(start, models.FrequencyWeekly, date(2025, 1, 20))
		require.NoError(t, err)
		assert.Equal(t, date(2025, 1, 27), got)
	})

	t.Run("monthly clamp is not permanent", func(t *testing.T) {
		start := date(2024, 1, 31)

		first, err := NextDueDateAfterFiring(start, models.FrequencyMonthly, start)
		require.NoError(t, err)
		assert.Equal(t, date(2024, 2, 29), first, "leap year February clamps to 29")

		second, err := NextDueDateAfterFiring(start, models.FrequencyMonthly, first)
		require.NoError(t, err)
		assert.Equal(t, date(2024, 3, 31), second, "March restores the original day 31")
	})

	t.Run("non leap February clamps to 28", func(t *testing.T) {
		start := date(2025, 1, 31)
		got, err := NextDueDateAfterFiring(start, models.FrequencyMonthly, start)
		require.NoError(t, err)
		assert.Equal(t, date(2025, 2, 28), got)
	})

	t.Run("repeat reuses monthly math", func(t *testing.T) {
		start := date(2024, 1, 31)
		got, err := NextDueDateAfterFiring(start, models.FrequencyRepeat, start)
		require.NoError(t, err)
		assert.Equal(t, date(2024, 2, 29), got)
	})

	t.Run("quarterly semiannual yearly periods", func(t *testing.T) {
		start := date(2025, 2, 15)

		got, err := NextDueDateAfterFiring(start, models.FrequencyQuarterly, start)
		require.NoError(t, err)
		assert.Equal(t, date(2025, 5, 15), got)

		got, err = NextDueDateAfterFiring(start, models.FrequencySemiannual, start)
		require.NoError(t, err)
		assert.Equal(t, date(2025, 8, 15), got)

		got, err = NextDueDateAfterFiring(start, models.FrequencyYearly, start)
		require.NoError(t, err)
		assert.Equal(t, date(2026, 2, 15), got)
	})
}

func TestNextOccurrences(t *testing.T) {
	t.Run("produces n dates applying the firing rule", func(t *testing.T) {
		start := date(2024, 1, 31)
		got, err := NextOccurrences(start, models.FrequencyMonthly, 4, date(2024, 1, 1))
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, date(2024, 1, 31), got[0])
		assert.Equal(t, date(2024, 2, 29), got[1])
		assert.Equal(t, date(2024, 3, 31), got[2])
		assert.Equal(t, date(2024, 4, 30), got[3])
	})

	t.Run("one time yields a single date", func(t *testing.T) {
		start := date(2025, 7, 1)
		got, err := NextOccurrences(start, models.FrequencyOneTime, 5, date(2025, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, []time.Time{start}, got)
	})

	t.Run("rejects non positive counts", func(t *testing.T) {
		_, err := NextOccurrences(date(2025, 1, 1), models.FrequencyMonthly, 0, date(2025, 1, 1))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
