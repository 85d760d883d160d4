package core

import "sort"

// AllocationOutcome holds the per-payee results in processing order plus the
// balances left for the transfer matcher.
type AllocationOutcome struct {
	Allocations []Allocation
	Surplus     []Balance
	Shortfall   []Balance
}

// Allocate hands out units from pool, largest request first. Payees with
// equal amounts keep their input order. Each payee is filled from the largest
// denomination down, taking a unit only while it does not exceed what is
// still owed, so a payee can end short but never over.
func Allocate(pool *Pool, payees []Payee) AllocationOutcome {
	ordered := make([]Payee, len(payees))
	copy(ordered, payees)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Amount > ordered[j].Amount
	})

	denoms := pool.Denominations()
	out := AllocationOutcome{Allocations: make([]Allocation, 0, len(ordered))}

	for _, payee := range ordered {
		a := allocateOne(pool, denoms, payee)
		out.Allocations = append(out.Allocations, a)

		switch {
		case a.Surplus > 0:
			out.Surplus = append(out.Surplus, Balance{Name: a.Name, Amount: a.Surplus})
		case a.Shortfall > 0:
			out.Shortfall = append(out.Shortfall, Balance{Name: a.Name, Amount: a.Shortfall})
		}
	}
	return out
}

func allocateOne(pool *Pool, denoms []Denomination, payee Payee) Allocation {
	a := Allocation{
		Name:      payee.Name,
		Requested: payee.Amount,
		Bills:     map[Denomination]int64{},
		Coins:     map[Denomination]int64{},
	}

	for _, d := range denoms {
		for int64(d) <= payee.Amount-a.Given && pool.Available(d) > 0 {
			if err := pool.Take(d); err != nil {
				break
			}
			a.Given += int64(d)
			if d.Tier() == Bill {
				a.Bills[d]++
			} else {
				a.Coins[d]++
			}
		}
	}

	if delta := a.Given - a.Requested; delta > 0 {
		a.Surplus = delta
	} else {
		a.Shortfall = -delta
	}
	return a
}
