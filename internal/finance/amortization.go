package finance

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Calculation errors. Services translate these to validation failures at the
// HTTP edge.
var (
	ErrInvalidInput         = errors.New("parámetros de cálculo inválidos")
	ErrUnsupportedFrequency = errors.New("frecuencia no soportada")
)

var twelve = decimal.NewFromInt(12)

// ScheduleEntry is one row of an amortization schedule
type ScheduleEntry struct {
	PaymentNumber         int             `json:"payment_number"`
	DueDate               time.Time       `json:"due_date"`
	ScheduledAmount       decimal.Decimal `json:"scheduled_amount"`
	PrincipalPortion      decimal.Decimal `json:"principal_portion"`
	InterestPortion       decimal.Decimal `json:"interest_portion"`
	RemainingBalanceAfter decimal.Decimal `json:"remaining_balance_after"`
}

// LoanState is the financial state a recalculation operates on
type LoanState struct {
	Balance         decimal.Decimal
	MonthlyPayment  decimal.Decimal
	AnnualRate      decimal.Decimal
	RemainingMonths int
}

// PaymentSplit is the interest/principal breakdown of one actual payment
type PaymentSplit struct {
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
}

// RecalcResult is the outcome of applying an actual payment to a loan
type RecalcResult struct {
	State          LoanState
	Split          PaymentSplit
	PaidOff        bool
	PaymentChanged bool
}

// PayoffSimulation compares paying a loan off at a target installment against
// riding out the remaining schedule.
type PayoffSimulation struct {
	TargetMonth       int             `json:"target_month"`
	PayoffAmount      decimal.Decimal `json:"payoff_amount"`
	TotalIfContinuing decimal.Decimal `json:"total_if_continuing"`
	TotalIfPayoff     decimal.Decimal `json:"total_if_payoff"`
	InterestSaved     decimal.Decimal `json:"interest_saved"`
}

// MonthlyPayment computes the constant annuity payment that repays principal
// plus interest over the given number of months.
//
// Formula: P * r * (1+r)^n / ((1+r)^n - 1) with r = annualRate/12.
// A zero rate degenerates to an even split.
func MonthlyPayment(principal, annualRate decimal.Decimal, months int) (decimal.Decimal, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("principal debe ser positivo: %w", ErrInvalidInput)
	}
	if months <= 0 {
		return decimal.Zero, fmt.Errorf("duración debe ser positiva: %w", ErrInvalidInput)
	}

	if annualRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(months))).Round(2), nil
	}

	// The power term is computed in float64, monetary arithmetic stays decimal.
	r := annualRate.InexactFloat64() / 12.0
	factor := math.Pow(1+r, float64(months))
	payment := principal.InexactFloat64() * r * factor / (factor - 1)

	return decimal.NewFromFloat(payment).Round(2), nil
}

// Schedule generates the full amortization schedule. Each row's interest is
// the running balance times the monthly rate; the final row forces the
// principal portion to the exact remaining balance so rounding never leaves a
// residual cent.
func Schedule(principal, annualRate decimal.Decimal, months int, firstDueDate time.Time) ([]ScheduleEntry, decimal.Decimal, error) {
	payment, err := MonthlyPayment(principal, annualRate, months)
	if err != nil {
		return nil, decimal.Zero, err
	}

	monthlyRate := annualRate.Div(twelve)
	balance := principal
	totalInterest := decimal.Zero
	entries := make([]ScheduleEntry, 0, months)

	for number := 1; number <= months; number++ {
		interest := balance.Mul(monthlyRate).Round(2)
		principalPortion := payment.Sub(interest)
		scheduled := payment

		if number == months {
			// Rounding correction: last row absorbs the drift.
			principalPortion = balance
			scheduled = principalPortion.Add(interest)
		}

		balance = balance.Sub(principalPortion)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		totalInterest = totalInterest.Add(interest)

		entries = append(entries, ScheduleEntry{
			PaymentNumber:         number,
			DueDate:               addMonthsClamped(firstDueDate, number-1),
			ScheduledAmount:       scheduled,
			PrincipalPortion:      principalPortion,
			InterestPortion:       interest,
			RemainingBalanceAfter: balance,
		})
	}

	return entries, totalInterest, nil
}

// SimulateEarlyPayoff computes the cost of paying the loan off right before
// the target installment instead of riding out the schedule. The payoff is
// assumed penalty-free.
func SimulateEarlyPayoff(state LoanState, targetMonth int) (PayoffSimulation, error) {
	if targetMonth < 1 || targetMonth > state.RemainingMonths {
		return PayoffSimulation{}, fmt.Errorf("mes objetivo fuera de rango [1, %d]: %w", state.RemainingMonths, ErrInvalidInput)
	}

	monthlyRate := state.AnnualRate.Div(twelve)

	// Walk the schedule up to the installment before the target to find the
	// balance at that point and the payments already made.
	balance := state.Balance
	paidBefore := decimal.Zero
	for i := 1; i < targetMonth; i++ {
		interest := balance.Mul(monthlyRate).Round(2)
		principalPortion := state.MonthlyPayment.Sub(interest)
		balance = balance.Sub(principalPortion)
		paidBefore = paidBefore.Add(state.MonthlyPayment)
	}
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	// Total cost of continuing: keep walking until the loan amortizes itself.
	continuing := paidBefore
	tail := balance
	for i := targetMonth; i <= state.RemainingMonths && tail.GreaterThan(decimal.Zero); i++ {
		interest := tail.Mul(monthlyRate).Round(2)
		principalPortion := state.MonthlyPayment.Sub(interest)
		if i == state.RemainingMonths || principalPortion.GreaterThanOrEqual(tail) {
			continuing = continuing.Add(tail.Add(interest))
			tail = decimal.Zero
			break
		}
		tail = tail.Sub(principalPortion)
		continuing = continuing.Add(state.MonthlyPayment)
	}

	payoffTotal := paidBefore.Add(balance)

	return PayoffSimulation{
		TargetMonth:       targetMonth,
		PayoffAmount:      balance.Round(2),
		TotalIfContinuing: continuing.Round(2),
		TotalIfPayoff:     payoffTotal.Round(2),
		InterestSaved:     continuing.Sub(payoffTotal).Round(2),
	}, nil
}

// RecalculateAfterPayment splits an actual payment into interest and
// principal and advances the loan state.
//
// Business rule carried over from the original product: only a payment that
// differs from the scheduled amount re-amortizes the remaining balance into a
// new monthly payment. An on-schedule payment keeps the payment figure and
// just reduces balance and remaining months.
func RecalculateAfterPayment(state LoanState, paidAmount decimal.Decimal) (RecalcResult, error) {
	if paidAmount.LessThanOrEqual(decimal.Zero) {
		return RecalcResult{}, fmt.Errorf("monto pagado debe ser positivo: %w", ErrInvalidInput)
	}
	if state.RemainingMonths <= 0 {
		return RecalcResult{}, fmt.Errorf("el préstamo no tiene cuotas restantes: %w", ErrInvalidInput)
	}

	monthlyRate := state.AnnualRate.Div(twelve)
	interest := state.Balance.Mul(monthlyRate).Round(2)
	principalPortion := paidAmount.Sub(interest)
	newBalance := state.Balance.Sub(principalPortion)

	split := PaymentSplit{Interest: interest, Principal: principalPortion}

	if newBalance.LessThanOrEqual(decimal.Zero) {
		return RecalcResult{
			State: LoanState{
				Balance:         decimal.Zero,
				MonthlyPayment:  state.MonthlyPayment,
				AnnualRate:      state.AnnualRate,
				RemainingMonths: 0,
			},
			Split:   split,
			PaidOff: true,
		}, nil
	}

	next := LoanState{
		Balance:         newBalance.Round(2),
		MonthlyPayment:  state.MonthlyPayment,
		AnnualRate:      state.AnnualRate,
		RemainingMonths: state.RemainingMonths - 1,
	}

	changed := false
	if !paidAmount.Equal(state.MonthlyPayment) && next.RemainingMonths > 0 {
		newPayment, err := MonthlyPayment(next.Balance, state.AnnualRate, next.RemainingMonths)
		if err != nil {
			return RecalcResult{}, err
		}
		next.MonthlyPayment = newPayment
		changed = true
	}

	return RecalcResult{State: next, Split: split, PaymentChanged: changed}, nil
}
