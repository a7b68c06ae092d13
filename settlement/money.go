package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in a currency's minor unit (cents for USD,
// yen for JPY). All engine arithmetic happens on Amount so shares always
// sum exactly, with no floating-point leakage.
type Amount int64

// currencyExponents maps ISO 4217 codes to their minor-unit exponent.
// Codes not listed default to 2.
var currencyExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0,
	"VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// CurrencyExponent returns the number of decimal places of a currency's
// minor unit.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[currency]; ok {
		return exp
	}
	return 2
}

// ParseAmount converts a decimal string like "100.00" into minor units of
// the given currency. Values with more precision than the currency's minor
// unit are rejected rather than rounded.
func ParseAmount(value string, currency string) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	exp := CurrencyExponent(currency)
	scaled := d.Shift(exp)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has more precision than %s allows", value, currency)
	}
	return Amount(scaled.IntPart()), nil
}

// FormatAmount renders minor units back into a decimal string for the
// given currency ("12345" + USD -> "123.45").
func FormatAmount(a Amount, currency string) string {
	return decimal.New(int64(a), -CurrencyExponent(currency)).StringFixed(CurrencyExponent(currency))
}

// Decimal returns the amount as a shopspring decimal in major units.
func (a Amount) Decimal(currency string) decimal.Decimal {
	return decimal.New(int64(a), -CurrencyExponent(currency))
}
