// Package format renders prices and months the way the FIPE table publishes them.
package format

import (
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var monthsPT = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// brl is go-money's BRL formatting with a space after the symbol, as the
// FIPE table prints it.
var brl = func() *money.Formatter {
	c := money.GetCurrency(money.BRL)
	return money.NewFormatter(c.Fraction, c.Decimal, c.Thousand, c.Grapheme, "$ 1")
}()

// PriceBRL formats a price in Brazilian Real, e.g. "R$ 11.520,00".
func PriceBRL(price decimal.Decimal) string {
	return brl.Format(price.Shift(2).Round(0).IntPart())
}

// MonthPT formats a month as "janeiro/2024".
func MonthPT(t time.Time) string {
	return fmt.Sprintf("%s/%d", monthsPT[t.Month()-1], t.Year())
}
