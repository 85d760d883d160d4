package core

import (
	"errors"
	"testing"
)

func TestNewPoolMergesTiers(t *testing.T) {
	p := NewPool(
		map[Denomination]int64{100: 2, 50: 1, 20: 0},
		map[Denomination]int64{10: 5, 1: 3},
	)
	if got := p.RemainingValue(); got != 2*100+50+5*10+3 {
		t.Fatalf("RemainingValue() = %d", got)
	}
	want := []Denomination{100, 50, 20, 10, 1}
	got := p.Denominations()
	if len(got) != len(want) {
		t.Fatalf("Denominations() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Denominations() = %v, want %v", got, want)
		}
	}
}

func TestNewPoolCoinsWinOnDuplicateValue(t *testing.T) {
	p := NewPool(map[Denomination]int64{10: 7}, map[Denomination]int64{10: 2})
	if got := p.Available(10); got != 2 {
		t.Fatalf("Available(10) = %d, want 2", got)
	}
}

func TestPoolTake(t *testing.T) {
	p := NewPool(map[Denomination]int64{20: 1}, nil)

	if err := p.Take(20); err != nil {
		t.Fatalf("first take: %v", err)
	}
	if got := p.Available(20); got != 0 {
		t.Fatalf("Available(20) = %d, want 0", got)
	}

	err := p.Take(20)
	if !errors.Is(err, ErrDenominationExhausted) {
		t.Fatalf("expected ErrDenominationExhausted, got %v", err)
	}
	if got := p.Available(20); got != 0 {
		t.Fatalf("count went negative: %d", got)
	}

	if err := p.Take(5); !errors.Is(err, ErrDenominationExhausted) {
		t.Fatalf("unknown denomination: expected ErrDenominationExhausted, got %v", err)
	}
}

func TestPoolCloneIsIndependent(t *testing.T) {
	p := NewPool(map[Denomination]int64{50: 2}, nil)
	c := p.Clone()
	if err := c.Take(50); err != nil {
		t.Fatal(err)
	}
	if p.Available(50) != 2 || c.Available(50) != 1 {
		t.Fatalf("clone shares state: original=%d clone=%d", p.Available(50), c.Available(50))
	}
}

func TestDenominationTier(t *testing.T) {
	cases := []struct {
		d    Denomination
		want Tier
	}{
		{200, Bill},
		{20, Bill},
		{19, Coin},
		{10, Coin},
		{1, Coin},
	}
	for _, tc := range cases {
		if got := tc.d.Tier(); got != tc.want {
			t.Errorf("%d.Tier() = %s, want %s", tc.d, got, tc.want)
		}
	}
}
