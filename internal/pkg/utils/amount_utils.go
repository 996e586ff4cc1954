package utils

import (
	"fmt"
	"math"
	"math/big"
)

// ParseBaseUnits converts a base-unit decimal string and its token decimals
// into a human-unit amount. Balances can exceed uint64, so the conversion
// goes through big.Float.
func ParseBaseUnits(raw string, decimals uint8) (float64, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return 0, fmt.Errorf("invalid base-unit amount %q", raw)
	}
	return BaseUnitsToFloat(amount, decimals), nil
}

// BaseUnitsToFloat divides a base-unit integer by 10^decimals.
func BaseUnitsToFloat(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), divisor).Float64()
	return value
}

// RoundsToZeroUSD reports whether a USD value rounds to zero at cent
// precision. Such holdings are dropped from per-chain fetch results.
func RoundsToZeroUSD(value float64) bool {
	return math.Round(value*100) == 0
}

// Pow10 returns 10^decimals as a float64.
func Pow10(decimals uint8) float64 {
	return math.Pow(10, float64(decimals))
}
