package valueobject

import (
	"math"
	"strconv"

	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// Totals производные финансовые поля предложения. Хранятся в БД, а не вычисляются лениво.
// Discount и Tax задаются в процентах: скидка применяется к subtotal, налог к сумме после скидки.
type Totals struct {
	Subtotal float64
	Discount float64
	Tax      float64
	Total    float64
}

// NewTotals проверяет входные значения и пересчитывает итог.
func NewTotals(subtotal, discount, tax float64) (Totals, error) {
	if subtotal < 0 {
		return Totals{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	if discount < 0 || discount > 100 {
		return Totals{}, apperror.New(apperror.ErrCodeValidation, "скидка должна быть от 0 до 100%")
	}
	if tax < 0 || tax > 100 {
		return Totals{}, apperror.New(apperror.ErrCodeValidation, "налог должен быть от 0 до 100%")
	}

	t := Totals{Subtotal: RoundMoney(subtotal), Discount: discount, Tax: tax}
	t.Total = t.compute()
	return t, nil
}

func (t Totals) compute() float64 {
	afterDiscount := t.Subtotal - t.Subtotal*t.Discount/100
	return RoundMoney(afterDiscount + afterDiscount*t.Tax/100)
}

// RoundMoney округляет до центов.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatMoney текстовое представление суммы для журнала изменений.
func FormatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
