package core

// BuildSummary aggregates the allocations against the final pool. The
// register figure adds the reserve back, since it never left the pool's
// accounting.
func BuildSummary(allocations []Allocation, pool *Pool, minCash int64) Summary {
	var s Summary
	for _, a := range allocations {
		s.TotalCashDistributed += a.Given
		s.BitTotal += a.Shortfall
	}
	s.RemainingInRegister = minCash + pool.RemainingValue()
	return s
}
