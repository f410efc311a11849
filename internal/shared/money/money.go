package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Places é a menor unidade do saldo interno (centavos de dólar)
const Places = 2

var (
	hundred = decimal.NewFromInt(100)

	ErrInvalidAmount = errors.New("invalid amount")
)

// Round arredonda para a unidade mínima, meio para cima.
// Deve ser aplicado uma única vez por quantidade calculada.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent calcula amount × pct / 100 já arredondado
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// Parse converte uma string decimal positiva; rejeita valores com mais casas que a unidade mínima
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, Check(d)
}

// Check exige valor positivo com no máximo Places casas
func Check(d decimal.Decimal) error {
	if !d.IsPositive() || !d.Equal(d.Truncate(Places)) {
		return ErrInvalidAmount
	}
	return nil
}

// String formata com duas casas fixas
func String(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
