package finance

import (
	"fmt"
	"time"

	"github.com/sgavilanez/planea-api/internal/models"
)

// periodMonths maps the month-based frequencies to their period length.
// REPEAT reuses monthly math.
func periodMonths(frequency string) (int, bool) {
	switch frequency {
	case models.FrequencyMonthly, models.FrequencyRepeat:
		return 1, true
	case models.FrequencyQuarterly:
		return 3, true
	case models.FrequencySemiannual:
		return 6, true
	case models.FrequencyYearly:
		return 12, true
	}
	return 0, false
}

// addMonthsClamped adds months to start clamping the day-of-month to the last
// valid day of the target month. The clamp is recomputed from start's own day
// every time, so a Jan-31 series visits Feb-28/29 and returns to day 31 in
// March instead of sticking at 28.
func addMonthsClamped(start time.Time, months int) time.Time {
	year := start.Year()
	month := int(start.Month()) + months
	year += (month - 1) / 12
	month = (month-1)%12 + 1

	day := start.Day()
	if last := daysInMonth(year, time.Month(month)); day > last {
		day = last
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, start.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextDueDate computes the first due date of an obligation that has not fired
// yet. A start date on or before asOf is itself the due date (the obligation
// is due immediately); otherwise candidates advance one period at a time from
// the start date until one lands after asOf.
func NextDueDate(startDate time.Time, frequency string, asOf time.Time) (time.Time, error) {
	if frequency == models.FrequencyOneTime {
		return startDate, nil
	}
	if !models.ValidFrequency(frequency) {
		return time.Time{}, fmt.Errorf("%q: %w", frequency, ErrUnsupportedFrequency)
	}

	if !startDate.After(asOf) {
		return startDate, nil
	}

	candidate := startDate
	for periods := 1; !candidate.After(asOf); periods++ {
		candidate = advanceFrom(startDate, frequency, periods)
	}
	return candidate, nil
}

// NextDueDateAfterFiring advances an obligation that just fired by exactly one
// period past lastDueDate. Month-based frequencies clamp against the original
// start day, never against the previous due date's day.
func NextDueDateAfterFiring(startDate time.Time, frequency string, lastDueDate time.Time) (time.Time, error) {
	switch frequency {
	case models.FrequencyOneTime:
		return startDate, nil
	case models.FrequencyWeekly:
		return lastDueDate.AddDate(0, 0, 7), nil
	}

	period, ok := periodMonths(frequency)
	if !ok {
		return time.Time{}, fmt.Errorf("%q: %w", frequency, ErrUnsupportedFrequency)
	}

	// lastDueDate was produced by clamped addition from startDate, so the
	// month distance between the two is exact.
	elapsed := (lastDueDate.Year()-startDate.Year())*12 + int(lastDueDate.Month()) - int(startDate.Month())
	return addMonthsClamped(startDate, elapsed+period), nil
}

// advanceFrom returns startDate moved forward by the given number of periods.
func advanceFrom(startDate time.Time, frequency string, periods int) time.Time {
	if frequency == models.FrequencyWeekly {
		return startDate.AddDate(0, 0, 7*periods)
	}
	period, _ := periodMonths(frequency)
	return addMonthsClamped(startDate, period*periods)
}

// NextOccurrences produces the next n due dates after asOf by applying the
// firing-advance rule repeatedly from the first pending due date.
func NextOccurrences(startDate time.Time, frequency string, n int, asOf time.Time) ([]time.Time, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cantidad de ocurrencias debe ser positiva: %w", ErrInvalidInput)
	}
	if frequency == models.FrequencyOneTime {
		return []time.Time{startDate}, nil
	}

	first, err := NextDueDate(startDate, frequency, asOf)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, n)
	dates = append(dates, first)
	current := first
	for len(dates) < n {
		current, err = NextDueDateAfterFiring(startDate, frequency, current)
		if err != nil {
			return nil, err
		}
		dates = append(dates, current)
	}

	return dates, nil
}
