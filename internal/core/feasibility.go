package core

// CheckFeasibility compares what can be handed out against what is owed.
// The reserve is only subtracted for the comparison; it is never taken from
// the pool.
func CheckFeasibility(initialCash int64, pool *Pool, minCash int64, payees []Payee) error {
	distributable := initialCash + pool.RemainingValue() - minCash
	needed := TotalRequested(payees)
	if distributable < needed {
		return &InsufficientFundsError{Distributable: distributable, Needed: needed}
	}
	return nil
}
