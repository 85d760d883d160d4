package core

// Distribute runs the full pipeline on a pool built fresh from req:
// feasibility, allocation, transfer matching and summary. On
// ErrInsufficientFunds nothing is allocated.
func Distribute(req Request) (Result, error) {
	pool := NewPool(req.Bills, req.Coins)
	minCash := req.EffectiveMinCash()

	if err := CheckFeasibility(req.InitialCash, pool, minCash, req.Payees); err != nil {
		return Result{}, err
	}

	outcome := Allocate(pool, req.Payees)
	transfers := MatchTransfers(outcome.Surplus, outcome.Shortfall)

	return Result{
		Allocations: outcome.Allocations,
		Transfers:   transfers,
		Summary:     BuildSummary(outcome.Allocations, pool, minCash),
		Pool:        pool.Counts(),
	}, nil
}
