// Package money formats whole-currency-unit amounts. Amounts are integers
// throughout the ledger; this deployment has no fractional sub-unit.
package money

import "github.com/dustin/go-humanize"

// Symbol prefixes formatted amounts.
var Symbol = "Rs."

// Format renders an amount with thousands separators, e.g. "Rs. 1,250".
func Format(amount int64) string {
	if amount < 0 {
		return "-" + Symbol + " " + humanize.Comma(-amount)
	}
	return Symbol + " " + humanize.Comma(amount)
}
