package core

import (
	"fmt"
	"sort"
)

// Pool is the stock of denominations a single distribution draws from.
// It is not safe for concurrent use; every request builds its own.
type Pool struct {
	counts map[Denomination]int64
}

// NewPool merges bills and coins into one store. A value present in both maps
// takes its count from coins.
func NewPool(bills, coins map[Denomination]int64) *Pool {
	counts := make(map[Denomination]int64, len(bills)+len(coins))
	for d, n := range bills {
		counts[d] = n
	}
	for d, n := range coins {
		counts[d] = n
	}
	return &Pool{counts: counts}
}

// Available returns how many units of d are left.
func (p *Pool) Available(d Denomination) int64 {
	return p.counts[d]
}

// Take removes one unit of d from the pool.
func (p *Pool) Take(d Denomination) error {
	if p.counts[d] <= 0 {
		return fmt.Errorf("take %d: %w", d, ErrDenominationExhausted)
	}
	p.counts[d]--
	return nil
}

// RemainingValue is the face value of everything still in the pool.
func (p *Pool) RemainingValue() int64 {
	var total int64
	for d, n := range p.counts {
		total += int64(d) * n
	}
	return total
}

// Denominations lists the known values, largest first.
func (p *Pool) Denominations() []Denomination {
	out := make([]Denomination, 0, len(p.counts))
	for d := range p.counts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// Counts returns a copy of the current stock.
func (p *Pool) Counts() map[Denomination]int64 {
	out := make(map[Denomination]int64, len(p.counts))
	for d, n := range p.counts {
		out[d] = n
	}
	return out
}

func (p *Pool) Clone() *Pool {
	return &Pool{counts: p.Counts()}
}
