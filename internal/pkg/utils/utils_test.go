package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchStrings(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	batches := BatchStrings(items, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"c", "d"}, batches[1])
	assert.Equal(t, []string{"e"}, batches[2])

	assert.Nil(t, BatchStrings(nil, 2))
	assert.Equal(t, [][]string{items}, BatchStrings(items, 0), "non-positive size keeps one batch")
	assert.Equal(t, [][]string{items}, BatchStrings(items, 10))
}

func TestDistinctStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, DistinctStrings([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, DistinctStrings(nil))
}

func TestParseBaseUnits(t *testing.T) {
	v, err := ParseBaseUnits("1500000000000000000", 18)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v, 1e-12)

	v, err = ParseBaseUnits("123456", 6)
	require.NoError(t, err)
	assert.InDelta(t, 0.123456, v, 1e-12)

	// Balances larger than uint64 must still parse.
	v, err = ParseBaseUnits("123456789012345678901234567890", 18)
	require.NoError(t, err)
	assert.InDelta(t, 1.23456789012345678901234567890e11, v, 1e3)

	_, err = ParseBaseUnits("not-a-number", 18)
	assert.Error(t, err)

	_, err = ParseBaseUnits("", 18)
	assert.Error(t, err)
}

func TestRoundsToZeroUSD(t *testing.T) {
	assert.True(t, RoundsToZeroUSD(0))
	assert.True(t, RoundsToZeroUSD(0.004))
	assert.True(t, RoundsToZeroUSD(-0.004))
	assert.False(t, RoundsToZeroUSD(0.005))
	assert.False(t, RoundsToZeroUSD(0.02))
}

func TestPow10(t *testing.T) {
	assert.Equal(t, 1.0, Pow10(0))
	assert.Equal(t, 1e6, Pow10(6))
	assert.Equal(t, 1e18, Pow10(18))
}
