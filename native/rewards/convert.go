package rewards

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Converter translates between raw stable units and whole reward points at a
// fixed rate. Both directions are exact: a stable amount must divide cleanly
// into whole USD and whole points, and the reverse path multiplies by an
// integral raw-units-per-point constant, so no fractional value is ever
// created or destroyed.
type Converter struct {
	stableDecimals uint8
	pointsPerUSD   uint64
	denom          *uint256.Int
	rawPerPoint    *uint256.Int
}

// NewConverter validates the rate configuration. The raw-units-per-point
// constant 10^stableDecimals / pointsPerUSD must be integral, otherwise the
// reverse conversion could not be lossless.
func NewConverter(stableDecimals uint8, pointsPerUSD uint64) (Converter, error) {
	if pointsPerUSD == 0 {
		return Converter{}, fmt.Errorf("rewards: points per USD must be positive")
	}
	if stableDecimals > 38 {
		return Converter{}, fmt.Errorf("rewards: stable decimals %d out of range", stableDecimals)
	}
	denom := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(stableDecimals)))
	rate := uint256.NewInt(pointsPerUSD)
	rawPerPoint := new(uint256.Int)
	remainder := new(uint256.Int)
	rawPerPoint.DivMod(denom, rate, remainder)
	if !remainder.IsZero() {
		return Converter{}, fmt.Errorf("rewards: 10^%d is not divisible by rate %d", stableDecimals, pointsPerUSD)
	}
	return Converter{
		stableDecimals: stableDecimals,
		pointsPerUSD:   pointsPerUSD,
		denom:          denom,
		rawPerPoint:    rawPerPoint,
	}, nil
}

// StableDecimals returns the stable asset precision the converter was built
// for.
func (c Converter) StableDecimals() uint8 { return c.stableDecimals }

// PointsPerUSD returns the fixed reward rate.
func (c Converter) PointsPerUSD() uint64 { return c.pointsPerUSD }

func (c Converter) initialised() bool {
	return c.denom != nil && c.rawPerPoint != nil
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return value, nil
}

// ToUSD converts a raw stable amount into whole USD, failing with
// ErrRoundAmountRequired when the division leaves a remainder.
func (c Converter) ToUSD(amount *big.Int) (*big.Int, error) {
	if !c.initialised() {
		return nil, fmt.Errorf("rewards: converter not initialised")
	}
	value, err := toUint256(amount)
	if err != nil {
		return nil, err
	}
	quotient := new(uint256.Int)
	remainder := new(uint256.Int)
	quotient.DivMod(value, c.denom, remainder)
	if !remainder.IsZero() {
		return nil, ErrRoundAmountRequired
	}
	return quotient.ToBig(), nil
}

// ToPoints converts a raw stable amount into whole reward points. The
// intermediate multiplication is overflow-checked and the final division must
// be exact.
func (c Converter) ToPoints(amount *big.Int) (*big.Int, error) {
	if !c.initialised() {
		return nil, fmt.Errorf("rewards: converter not initialised")
	}
	value, err := toUint256(amount)
	if err != nil {
		return nil, err
	}
	scaled, overflow := new(uint256.Int).MulOverflow(value, uint256.NewInt(c.pointsPerUSD))
	if overflow {
		return nil, ErrAmountOverflow
	}
	quotient := new(uint256.Int)
	remainder := new(uint256.Int)
	quotient.DivMod(scaled, c.denom, remainder)
	if !remainder.IsZero() {
		return nil, ErrRoundAmountRequired
	}
	return quotient.ToBig(), nil
}

// ToStable converts whole reward points back into raw stable units. Points
// carry no fractional subunits, so the multiplication is exact; only overflow
// can fail it.
func (c Converter) ToStable(points *big.Int) (*big.Int, error) {
	if !c.initialised() {
		return nil, fmt.Errorf("rewards: converter not initialised")
	}
	value, err := toUint256(points)
	if err != nil {
		return nil, err
	}
	raw, overflow := new(uint256.Int).MulOverflow(value, c.rawPerPoint)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return raw.ToBig(), nil
}
