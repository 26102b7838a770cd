package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeShares_ProportionalSplit(t *testing.T) {
	investments := []*Investment{
		{ID: "inv-1", InvestorID: "user-1", Amount: 500_000_00},
		{ID: "inv-2", InvestorID: "user-2", Amount: 300_000_00},
		{ID: "inv-3", InvestorID: "user-3", Amount: 200_000_00},
	}

	// ₦1,000,000 across 50%/30%/20%
	results := ComputeShares(1_000_000_00, investments)

	require.Len(t, results, 3)
	assert.Equal(t, int64(500_000_00), results[0].Amount)
	assert.Equal(t, int64(300_000_00), results[1].Amount)
	assert.Equal(t, int64(200_000_00), results[2].Amount)

	for _, result := range results {
		assert.Equal(t, DistributionResultPending, result.Status)
	}
}

func TestComputeShares_ExactConservation(t *testing.T) {
	// 100 kobo across three equal investors does not divide evenly; the
	// leftover kobo must still be handed out.
	investments := []*Investment{
		{ID: "inv-1", InvestorID: "user-1", Amount: 100},
		{ID: "inv-2", InvestorID: "user-2", Amount: 100},
		{ID: "inv-3", InvestorID: "user-3", Amount: 100},
	}

	results := ComputeShares(100, investments)
	require.Len(t, results, 3)

	var sum int64
	for _, result := range results {
		sum += result.Amount
	}

	assert.Equal(t, int64(100), sum)

	// Earlier investments win remainder ties.
	assert.Equal(t, int64(34), results[0].Amount)
	assert.Equal(t, int64(33), results[1].Amount)
	assert.Equal(t, int64(33), results[2].Amount)
}

func TestComputeShares_SingleInvestor(t *testing.T) {
	results := ComputeShares(750_000, []*Investment{
		{ID: "inv-1", InvestorID: "user-1", Amount: 42},
	})

	require.Len(t, results, 1)
	assert.Equal(t, int64(750_000), results[0].Amount)
}

func TestComputeShares_NoInvestments(t *testing.T) {
	assert.Nil(t, ComputeShares(1_000_000, nil))
	assert.Nil(t, ComputeShares(1_000_000, []*Investment{}))
}

func TestComputeShares_ZeroInvestedAmounts(t *testing.T) {
	results := ComputeShares(1_000_000, []*Investment{
		{ID: "inv-1", InvestorID: "user-1", Amount: 0},
	})

	assert.Nil(t, results)
}

func TestComputeShares_LargeKoboAmounts(t *testing.T) {
	// ₦30B distributed over ₦40B and ₦20B positions; the intermediate
	// product of total and position exceeds int64.
	investments := []*Investment{
		{ID: "inv-1", InvestorID: "user-1", Amount: 4_000_000_000_000},
		{ID: "inv-2", InvestorID: "user-2", Amount: 2_000_000_000_000},
	}

	results := ComputeShares(3_000_000_000_000, investments)
	require.Len(t, results, 2)

	assert.Equal(t, int64(2_000_000_000_000), results[0].Amount)
	assert.Equal(t, int64(1_000_000_000_000), results[1].Amount)
}

func TestComputeShares_LargeUnevenAmountsConserved(t *testing.T) {
	investments := []*Investment{
		{ID: "inv-1", InvestorID: "user-1", Amount: 3_333_333_333_337},
		{ID: "inv-2", InvestorID: "user-2", Amount: 2_718_281_828_459},
		{ID: "inv-3", InvestorID: "user-3", Amount: 1_414_213_562_373},
	}

	total := int64(5_000_000_000_001)
	results := ComputeShares(total, investments)
	require.Len(t, results, 3)

	var sum int64
	for _, result := range results {
		require.GreaterOrEqual(t, result.Amount, int64(0))
		sum += result.Amount
	}

	assert.Equal(t, total, sum)
}

func TestComputeShares_SumConservedForUnevenAmounts(t *testing.T) {
	investments := []*Investment{
		{ID: "inv-1", InvestorID: "user-1", Amount: 333},
		{ID: "inv-2", InvestorID: "user-2", Amount: 719},
		{ID: "inv-3", InvestorID: "user-3", Amount: 101},
		{ID: "inv-4", InvestorID: "user-4", Amount: 7},
	}

	for _, total := range []int64{1, 99, 1000, 12_345_678, 1_000_000_00} {
		results := ComputeShares(total, investments)
		require.Len(t, results, 4)

		var sum int64
		for _, result := range results {
			sum += result.Amount
		}

		assert.Equal(t, total, sum, "total %d must be conserved", total)
	}
}
