// Package format makes order quantities and prices compliant with the
// exchange LOT_SIZE, PRICE_FILTER and NOTIONAL rules of a symbol.
package format

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

const (
	// wirePlaces is the fixed-point precision used to strip float artifacts.
	wirePlaces = 12
	// fallbackPlaces is used when filter metadata is unavailable.
	fallbackPlaces = 6
)

// Quantity floors qty to the symbol step size and clamps it to MaxQty.
// A result below MinQty (or not positive) yields ErrQuantityTooSmall; the
// value is never bumped up. With nil filters qty is floored to 6 decimals.
func Quantity(qty float64, filters *domain.SymbolFilters) (float64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: %s", ports.ErrQuantityTooSmall, Render(qty))
	}

	if filters == nil {
		out := Clean(floorPlaces(qty, fallbackPlaces))
		if out <= 0 {
			return 0, fmt.Errorf("%w: %s floors to zero", ports.ErrQuantityTooSmall, Render(qty))
		}
		return out, nil
	}

	out := floorStep(qty, filters.StepSize)
	if filters.MaxQty > 0 && out > filters.MaxQty {
		out = floorStep(filters.MaxQty, filters.StepSize)
	}
	if out <= 0 || (filters.MinQty > 0 && out < filters.MinQty) {
		return 0, fmt.Errorf("%w: %s rounds to %s, min %s", ports.ErrQuantityTooSmall,
			Render(qty), Render(out), Render(filters.MinQty))
	}
	return out, nil
}

// Price floors price to the symbol tick size (6 decimals with nil filters).
func Price(price float64, filters *domain.SymbolFilters) float64 {
	if price <= 0 {
		return 0
	}
	if filters == nil {
		return Clean(floorPlaces(price, fallbackPlaces))
	}
	return floorStep(price, filters.TickSize)
}

// CheckNotional reports ErrBelowMinNotional when qty × price is under the
// symbol minimum. It never adjusts anything.
func CheckNotional(qty, price float64, filters *domain.SymbolFilters) error {
	if filters == nil || filters.MinNotional <= 0 {
		return nil
	}
	notional := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price))
	if notional.LessThan(decimal.NewFromFloat(filters.MinNotional)) {
		return fmt.Errorf("%w: %s x %s = %s < %s", ports.ErrBelowMinNotional,
			Render(qty), Render(price), notional.Truncate(wirePlaces).String(), Render(filters.MinNotional))
	}
	return nil
}

// MinQuantityForNotional returns the smallest step-aligned quantity whose
// notional at price reaches MinNotional, never less than MinQty.
func MinQuantityForNotional(price float64, filters *domain.SymbolFilters) float64 {
	if filters == nil || price <= 0 {
		return 0
	}
	need := decimal.Zero
	if filters.MinNotional > 0 {
		need = decimal.NewFromFloat(filters.MinNotional).Div(decimal.NewFromFloat(price))
	}
	if filters.StepSize > 0 {
		step := decimal.NewFromFloat(filters.StepSize)
		need = need.Div(step).Ceil().Mul(step)
	}
	out, _ := need.Truncate(wirePlaces).Float64()
	if out < filters.MinQty {
		out = filters.MinQty
	}
	return out
}

// Clean re-renders v through 12-decimal fixed point.
func Clean(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Truncate(wirePlaces).Float64()
	return out
}

// Render formats v for the wire without exponent or float noise.
func Render(v float64) string {
	return decimal.NewFromFloat(v).Truncate(wirePlaces).String()
}

func floorStep(v, step float64) float64 {
	if step <= 0 {
		return Clean(v)
	}
	s := decimal.NewFromFloat(step)
	out, _ := decimal.NewFromFloat(v).Div(s).Floor().Mul(s).Truncate(wirePlaces).Float64()
	return out
}

func floorPlaces(v float64, places int32) float64 {
	out, _ := decimal.NewFromFloat(v).Truncate(places).Float64()
	return out
}
