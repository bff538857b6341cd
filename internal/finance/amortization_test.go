package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestMonthlyPayment(t *testing.T) {
	t.Run("standard annuity", func(t *testing.T) {
		payment, err := MonthlyPayment(d("10000"), d("0.05"), 12)
		require.NoError(t, err)
		assert.True(t, payment.Equal(d("856.07")), "expected 856.07, got %s", payment)
	})

	t.Run("zero rate splits evenly", func(t *testing.T) {
		payment, err := MonthlyPayment(d("1200"), decimal.Zero, 12)
		require.NoError(t, err)
		assert.True(t, payment.Equal(d("100")), "got %s", payment)
	})

	t.Run("non positive principal", func(t *testing.T) {
		_, err := MonthlyPayment(decimal.Zero, d("0.05"), 12)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("non positive duration", func(t *testing.T) {
		_, err := MonthlyPayment(d("1000"), d("0.05"), 0)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestSchedule(t *testing.T) {
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("principal portions sum to principal", func(t *testing.T) {
		principal := d("10000")
		entries, totalInterest, err := Schedule(principal, d("0.05"), 12, first)
		require.NoError(t, err)
		require.Len(t, entries, 12)

		sum := decimal.Zero
		for _, e := range entries {
			sum = sum.Add(e.PrincipalPortion)
		}
		assert.True(t, sum.Equal(principal), "principal sum %s", sum)
		assert.True(t, entries[11].RemainingBalanceAfter.IsZero(), "final balance %s", entries[11].RemainingBalanceAfter)
		assert.True(t, totalInterest.GreaterThan(decimal.Zero))
	})

	t.Run("due dates advance one calendar month", func(t *testing.T) {
		entries, _, err := Schedule(d("1200"), decimal.Zero, 3, first)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), entries[0].DueDate)
		assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), entries[1].DueDate)
		assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), entries[2].DueDate)
	})

	t.Run("each interest is balance times monthly rate", func(t *testing.T) {
		entries, _, err := Schedule(d("10000"), d("0.12"), 6, first)
		require.NoError(t, err)
		// First row: 10000 * 0.01 = 100.00
		assert.True(t, entries[0].InterestPortion.Equal(d("100")), "got %s", entries[0].InterestPortion)
	})
}

func TestSimulateEarlyPayoff(t *testing.T) {
	state := LoanState{
		Balance:         d("10000"),
		MonthlyPayment:  d("856.07"),
		AnnualRate:      d("0.05"),
		RemainingMonths: 12,
	}

	t.Run("target month out of range", func(t *testing.T) {
		_, err := SimulateEarlyPayoff(state, 0)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = SimulateEarlyPayoff(state, 13)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("payoff at first installment costs the full balance", func(t *testing.T) {
		sim, err := SimulateEarlyPayoff(state, 1)
		require.NoError(t, err)
		assert.True(t, sim.PayoffAmount.Equal(d("10000")), "got %s", sim.PayoffAmount)
		assert.True(t, sim.InterestSaved.GreaterThan(decimal.Zero))
	})

	t.Run("later payoff saves less interest", func(t *testing.T) {
		early, err := SimulateEarlyPayoff(state, 2)
		require.NoError(t, err)
		late, err := SimulateEarlyPayoff(state, 10)
		require.NoError(t, err)
		assert.True(t, late.InterestSaved.LessThan(early.InterestSaved))
		assert.True(t, late.PayoffAmount.LessThan(early.PayoffAmount))
	})
}

func TestRecalculateAfterPayment(t *testing.T) {
	base := LoanState{
		Balance:         d("10000"),
		MonthlyPayment:  d("856.07"),
		AnnualRate:      d("0.05"),
		RemainingMonths: 12,
	}

	t.Run("on schedule payment keeps the payment figure", func(t *testing.T) {
		res, err := RecalculateAfterPayment(base, d("856.07"))
		require.NoError(t, err)

		// interest = 10000 * 0.05/12 = 41.67, principal = 814.40
		assert.True(t, res.Split.Interest.Equal(d("41.67")), "interest %s", res.Split.Interest)
		assert.True(t, res.Split.Principal.Equal(d("814.40")), "principal %s", res.Split.Principal)
		assert.True(t, res.State.Balance.Equal(d("9185.60")), "balance %s", res.State.Balance)
		assert.Equal(t, 11, res.State.RemainingMonths)
		assert.True(t, res.State.MonthlyPayment.Equal(base.MonthlyPayment))
		assert.False(t, res.PaymentChanged)
		assert.False(t, res.PaidOff)
	})

	t.Run("overpayment re-amortizes the remaining balance", func(t *testing.T) {
		res, err := RecalculateAfterPayment(base, d("1500"))
		require.NoError(t, err)
		assert.True(t, res.PaymentChanged)
		assert.Equal(t, 11, res.State.RemainingMonths)
		assert.True(t, res.State.MonthlyPayment.LessThan(base.MonthlyPayment),
			"overpayment should lower the payment: %s", res.State.MonthlyPayment)
	})

	t.Run("payment covering balance plus interest pays the loan off", func(t *testing.T) {
		res, err := RecalculateAfterPayment(base, d("10041.67"))
		require.NoError(t, err)
		assert.True(t, res.PaidOff)
		assert.True(t, res.State.Balance.IsZero())
		assert.Equal(t, 0, res.State.RemainingMonths)
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		_, err := RecalculateAfterPayment(base, decimal.Zero)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
