// Package expect computes the values suites compare GemPlay responses
// against. Money is handled as decimals rounded to cents so that
// 0.03 * 17.50 compares equal to the backend's "0.53".
package expect

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision money values are compared at.
const MoneyPlaces = 2

// Money rounds a float to cents.
func Money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(MoneyPlaces)
}

// Commission is bet * rate rounded to cents.
func Commission(bet, rate float64) decimal.Decimal {
	return decimal.NewFromFloat(bet).Mul(decimal.NewFromFloat(rate)).Round(MoneyPlaces)
}

// CommissionMatches reports whether actual equals the commission on bet
// at rate, at cent precision.
func CommissionMatches(actual, bet, rate float64) bool {
	return Money(actual).Equal(Commission(bet, rate))
}

// CycleSum is the expected total bet volume of one bot cycle:
// (min+max)/2 * games.
func CycleSum(minBet, maxBet float64, games int) decimal.Decimal {
	return decimal.NewFromFloat(minBet).
		Add(decimal.NewFromFloat(maxBet)).
		Div(decimal.NewFromInt(2)).
		Mul(decimal.NewFromInt(int64(games))).
		Round(MoneyPlaces)
}

// InRange reports whether min <= v <= max at cent precision.
func InRange(v, minV, maxV float64) bool {
	d := Money(v)
	return d.GreaterThanOrEqual(Money(minV)) && d.LessThanOrEqual(Money(maxV))
}

// Approx reports whether |actual-expected| <= tolerance.
func Approx(actual, expected, tolerance float64) bool {
	diff := decimal.NewFromFloat(actual).Sub(decimal.NewFromFloat(expected)).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(tolerance))
}

// Delta is after-before rounded to cents.
func Delta(before, after float64) decimal.Decimal {
	return Money(after).Sub(Money(before))
}

// Outcomes is a win/loss/draw split of a cycle.
type Outcomes struct {
	Wins   int
	Losses int
	Draws  int
}

// Total is the number of games the split covers.
func (o Outcomes) Total() int {
	return o.Wins + o.Losses + o.Draws
}

// Distribution turns percentage targets into game counts that sum to
// games, handing leftover games to the largest fractional remainders.
func Distribution(winsPct, lossesPct, drawsPct float64, games int) (Outcomes, error) {
	if games <= 0 {
		return Outcomes{}, fmt.Errorf("games must be positive, got %d", games)
	}
	hundred := decimal.NewFromInt(100)
	sum := decimal.NewFromFloat(winsPct).Add(decimal.NewFromFloat(lossesPct)).Add(decimal.NewFromFloat(drawsPct))
	if !sum.Equal(hundred) {
		return Outcomes{}, fmt.Errorf("percentages must sum to 100, got %s", sum)
	}

	type share struct {
		idx   int
		count int
		rem   decimal.Decimal
	}
	n := decimal.NewFromInt(int64(games))
	shares := make([]share, 3)
	assigned := 0
	for i, pct := range []float64{winsPct, lossesPct, drawsPct} {
		exact := decimal.NewFromFloat(pct).Mul(n).Div(hundred)
		floor := exact.Floor()
		shares[i] = share{idx: i, count: int(floor.IntPart()), rem: exact.Sub(floor)}
		assigned += shares[i].count
	}

	order := append([]share(nil), shares...)
	sort.SliceStable(order, func(a, b int) bool {
		return order[a].rem.GreaterThan(order[b].rem)
	})
	for i := 0; assigned < games; i++ {
		shares[order[i%3].idx].count++
		assigned++
	}

	return Outcomes{Wins: shares[0].count, Losses: shares[1].count, Draws: shares[2].count}, nil
}
