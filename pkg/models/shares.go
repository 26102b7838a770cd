package models

import (
	"math/bits"
	"sort"
)

// ComputeShares apportions totalAmount across the given investments in
// proportion to each investment's amount, using largest-remainder rounding so
// the shares sum to exactly totalAmount. Shares are computed once at batch
// start; callers must not recompute them mid-run.
//
// Each investor's share is totalAmount * (investment.Amount / sum of amounts),
// floored, with the leftover kobo handed out one each to the investors with
// the largest discarded remainders (earlier investments win ties).
func ComputeShares(totalAmount int64, investments []*Investment) []DistributionResult {
	if len(investments) == 0 {
		return nil
	}

	var totalInvested int64
	for _, inv := range investments {
		totalInvested += inv.Amount
	}

	if totalInvested <= 0 {
		return nil
	}

	type allocation struct {
		index     int
		remainder int64
	}

	results := make([]DistributionResult, len(investments))
	allocations := make([]allocation, len(investments))

	var allocated int64

	for i, inv := range investments {
		share, remainder := mulDiv(totalAmount, inv.Amount, totalInvested)
		allocated += share

		results[i] = DistributionResult{
			InvestmentID: inv.ID,
			UserID:       inv.InvestorID,
			Amount:       share,
			Status:       DistributionResultPending,
		}
		allocations[i] = allocation{
			index:     i,
			remainder: remainder,
		}
	}

	sort.SliceStable(allocations, func(a, b int) bool {
		return allocations[a].remainder > allocations[b].remainder
	})

	for i := int64(0); i < totalAmount-allocated; i++ {
		results[allocations[i%int64(len(allocations))].index].Amount++
	}

	return results
}

// mulDiv returns a*b/d and a*b%d through a 128-bit intermediate, so the
// product of two large kobo amounts cannot overflow int64. Inputs must be
// non-negative with b <= d.
func mulDiv(a, b, d int64) (quo, rem int64) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	q, r := bits.Div64(hi, lo, uint64(d))

	return int64(q), int64(r)
}
