package finance

import (
	"github.com/shopspring/decimal"

	"github.com/sgavilanez/planea-api/internal/models"
)

// SignedAmount centralizes the posting sign convention: income is positive,
// every other category posts negative. All ledger postings and reversals go
// through here.
func SignedAmount(category string, magnitude decimal.Decimal) decimal.Decimal {
	if category == models.CategoryIncome {
		return magnitude.Abs()
	}
	return magnitude.Abs().Neg()
}

// OppositeCategory flips a category between income and expense for reversal
// purposes. Reverting a posting flips the category rather than the sign so a
// single code path computes all deltas.
func OppositeCategory(category string) string {
	if category == models.CategoryIncome {
		return "gasto"
	}
	return models.CategoryIncome
}
