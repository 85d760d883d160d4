// Package core implements the cash distribution algorithm.
//
// A distribution hands physical denominations out of a request-scoped Pool to
// a list of payees, largest request first, and then pairs any over-allocation
// with any under-allocation into balancing transfers.
package core

import (
	"errors"
	"fmt"
)

// BillThreshold is the smallest face value reported as a bill.
const BillThreshold Denomination = 20

// DefaultMinCash is the register reserve used when a request does not set one.
const DefaultMinCash int64 = 2500

const (
	Bill Tier = "bill"
	Coin Tier = "coin"
)

type (
	// Denomination is a face value in minor units.
	Denomination int64

	// Tier is the reporting bucket of a denomination.
	Tier string

	Payee struct {
		Name   string
		Amount int64
	}

	// Allocation is what one payee received from the pool.
	Allocation struct {
		Name      string
		Requested int64
		Given     int64
		Bills     map[Denomination]int64
		Coins     map[Denomination]int64
		Shortfall int64
		Surplus   int64
	}

	// Balance is an entry of the surplus or shortfall list fed to the matcher.
	Balance struct {
		Name   string
		Amount int64
	}

	Transfer struct {
		From   string
		To     string
		Amount int64
	}

	Summary struct {
		TotalCashDistributed int64
		BitTotal             int64
		RemainingInRegister  int64
	}

	// Request is the validated input of a distribution.
	Request struct {
		Payees      []Payee
		Bills       map[Denomination]int64
		Coins       map[Denomination]int64
		InitialCash int64
		MinCash     *int64 // nil means DefaultMinCash
	}

	Result struct {
		Allocations []Allocation
		Transfers   []Transfer
		Summary     Summary
		Pool        map[Denomination]int64
	}
)

var (
	ErrInsufficientFunds     = errors.New("not enough cash to distribute")
	ErrDenominationExhausted = errors.New("denomination exhausted")
)

// InsufficientFundsError reports the figures of a failed feasibility check.
type InsufficientFundsError struct {
	Distributable int64
	Needed        int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: distributable %d, needed %d", ErrInsufficientFunds, e.Distributable, e.Needed)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// Tier returns Bill for values at or above BillThreshold and Coin otherwise.
func (d Denomination) Tier() Tier {
	if d >= BillThreshold {
		return Bill
	}
	return Coin
}

// EffectiveMinCash returns the reserve to leave in the register.
func (r Request) EffectiveMinCash() int64 {
	if r.MinCash == nil {
		return DefaultMinCash
	}
	return *r.MinCash
}

// TotalRequested sums the requested amounts of all payees.
func TotalRequested(payees []Payee) int64 {
	var total int64
	for _, p := range payees {
		total += p.Amount
	}
	return total
}
