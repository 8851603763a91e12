package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var maxDownPaymentRatio = decimal.RequireFromString("0.85")

type LoanTerms struct {
	DownPayment decimal.Decimal
	LoanTerm    int
	APR         decimal.Decimal
}

type LoanQuote struct {
	FinancedAmount decimal.Decimal
	LoanPayment    decimal.Decimal
	TotalPrice     decimal.Decimal
}

// MaxDownPayment is the largest down payment accepted for a purchase total.
func MaxDownPayment(total decimal.Decimal) decimal.Decimal {
	return total.Mul(maxDownPaymentRatio).Round(2)
}

// QuoteLoan finances total-down at a flat apr over the term:
// financed = (total - down) * (1 + apr/100), payment = financed / term.
func QuoteLoan(total decimal.Decimal, terms LoanTerms) (LoanQuote, error) {
	if terms.LoanTerm <= 0 {
		return LoanQuote{}, fmt.Errorf("%w: loan term must be positive", ErrInvalidLoan)
	}
	if terms.DownPayment.IsNegative() || terms.APR.IsNegative() {
		return LoanQuote{}, fmt.Errorf("%w: down payment and apr must not be negative", ErrInvalidLoan)
	}
	if terms.DownPayment.GreaterThan(MaxDownPayment(total)) {
		return LoanQuote{}, ErrOrderExceedDownPayment
	}
	rate := decimal.NewFromInt(1).Add(terms.APR.Div(hundred))
	financed := total.Sub(terms.DownPayment).Mul(rate).Round(2)
	return LoanQuote{
		FinancedAmount: financed,
		LoanPayment:    financed.Div(decimal.NewFromInt(int64(terms.LoanTerm))).Round(2),
		TotalPrice:     financed.Add(terms.DownPayment),
	}, nil
}

// MinorUnits converts a store amount into integer gateway minor units. It is
// display-only; order totals are never recomputed from it.
func MinorUnits(amount, exchangeRate decimal.Decimal) int64 {
	return amount.Mul(exchangeRate).Mul(hundred).Round(0).IntPart()
}
