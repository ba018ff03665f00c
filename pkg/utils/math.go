package utils

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// math.go - денежная арифметика детекторов
//
// Все функции чистые и работают на decimal.Decimal, без float64.

var (
	bpsMultiplier = decimal.NewFromInt(10000)

	// FundingPeriodsPerYear - три 8-часовых периода финансирования в день
	FundingPeriodsPerYear = decimal.NewFromInt(3 * 365)
)

// SpreadBps возвращает |a - b| / reference в базисных пунктах, с отбрасыванием дробной части.
//
// Примеры:
//   - SpreadBps(2001.5, 2000, 2000) = 7
//   - SpreadBps(1990, 2000, 2000) = 50
//   - reference <= 0 → 0
func SpreadBps(a, b, reference decimal.Decimal) int64 {
	if !reference.IsPositive() {
		return 0
	}
	return a.Sub(b).Abs().Div(reference).Mul(bpsMultiplier).IntPart()
}

// ProfitBps возвращает (out - in) * 10000 / in, целочисленно. Отрицательный результат означает убыток.
//
// Пример: ProfitBps(1_000_000_000, 1_003_000_000) = 30
func ProfitBps(in, out uint64) int64 {
	if in == 0 {
		return 0
	}
	profit := FromUint64(out).Sub(FromUint64(in))
	return profit.Mul(bpsMultiplier).Div(FromUint64(in)).IntPart()
}

// FromUint64 переводит сумму в минимальных единицах в decimal без потери старшего бита
func FromUint64(x uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
}

// ToUint64 отбрасывает дробную часть; отрицательное → 0, сверх диапазона → MaxUint64
func ToUint64(d decimal.Decimal) uint64 {
	if !d.IsPositive() {
		return 0
	}
	b := d.BigInt()
	if !b.IsUint64() {
		return math.MaxUint64
	}
	return b.Uint64()
}

// AnnualizeFunding переводит спред ставки за период в годовой
//
// Пример: AnnualizeFunding(0.0018) = 1.971
func AnnualizeFunding(periodSpread decimal.Decimal) decimal.Decimal {
	return periodSpread.Mul(FundingPeriodsPerYear)
}

// CalculatePNL - PNL позиции по стороне (long/short)
func CalculatePNL(long bool, entryPrice, currentPrice, size decimal.Decimal) decimal.Decimal {
	diff := currentPrice.Sub(entryPrice)
	if !long {
		diff = diff.Neg()
	}
	return diff.Mul(size)
}
