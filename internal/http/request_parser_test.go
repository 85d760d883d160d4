package http

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"tipsplit/internal/core"
)

func TestDecodeDistributeRequest(t *testing.T) {
	body := `{
		"employees": [{"name": " Ada ", "amount": 260}, {"name": "Bo", "amount": 40}],
		"bills": {"100": 2, "50": 1},
		"coins": {"10": 5},
		"initial_cash": 0
	}`

	parsed, err := DecodeDistributeRequest([]byte(body), 0)
	if err != nil {
		t.Fatalf("DecodeDistributeRequest() error = %v", err)
	}

	req := parsed.Core
	if len(req.Payees) != 2 || req.Payees[0].Name != "Ada" || req.Payees[0].Amount != 260 {
		t.Errorf("payees = %+v", req.Payees)
	}
	if req.Bills[100] != 2 || req.Bills[50] != 1 || req.Coins[10] != 5 {
		t.Errorf("bills = %v, coins = %v", req.Bills, req.Coins)
	}
	if req.MinCash == nil || *req.MinCash != 0 {
		t.Errorf("MinCash = %v, want 0", req.MinCash)
	}
	if parsed.Digest == "" || len(parsed.Digest) != 64 {
		t.Errorf("Digest = %q, want sha256 hex", parsed.Digest)
	}
}

func TestDecodeDistributeRequest_MinCashDefault(t *testing.T) {
	body := `{"employees": [], "initial_cash": 5}`

	parsed, err := DecodeDistributeRequest([]byte(body), 50)
	if err != nil {
		t.Fatalf("DecodeDistributeRequest() error = %v", err)
	}
	if got := *parsed.Core.MinCash; got != 50 {
		t.Errorf("MinCash = %d, want default 50", got)
	}

	parsed, err = DecodeDistributeRequest([]byte(`{"employees": [], "initial_cash": 5, "min_cash": 0}`), 50)
	if err != nil {
		t.Fatalf("DecodeDistributeRequest() error = %v", err)
	}
	if got := *parsed.Core.MinCash; got != 0 {
		t.Errorf("explicit MinCash = %d, want 0", got)
	}
}

func TestDecodeDistributeRequest_EquivalentBodiesShareDigest(t *testing.T) {
	a, err := DecodeDistributeRequest([]byte(`{"employees":[{"name":"A","amount":10}],"coins":{"10":1},"initial_cash":0,"min_cash":0}`), 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := DecodeDistributeRequest([]byte(`{"initial_cash":0,"coins":{"010":1},"employees":[{"amount":10,"name":" A"}]}`), 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.Digest != b.Digest {
		t.Errorf("digests differ: %s vs %s\n%s\n%s", a.Digest, b.Digest, a.Canonical, b.Canonical)
	}
}

func TestDecodeDistributeRequest_EquivalentKeysLastWins(t *testing.T) {
	tests := []struct {
		body string
		want int64
	}{
		{`{"employees":[],"coins":{"10":1,"010":2},"initial_cash":0}`, 2},
		{`{"employees":[],"coins":{"010":2,"10":1},"initial_cash":0}`, 1},
		{`{"employees":[],"coins":{"10":4,"10":3},"initial_cash":0}`, 3},
	}
	for _, tt := range tests {
		parsed, err := DecodeDistributeRequest([]byte(tt.body), 0)
		if err != nil {
			t.Fatal(err)
		}
		if got := parsed.Core.Coins[core.Denomination(10)]; got != tt.want {
			t.Errorf("%s: coins[10] = %d, want %d", tt.body, got, tt.want)
		}
	}
}

func TestDecodeDistributeRequest_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"empty", ``, ""},
		{"array", `[]`, ""},
		{"syntax", `{"employees": [}`, ""},
		{"trailing data", `{"employees": [], "initial_cash": 0} {}`, ""},
		{"missing employees", `{"initial_cash": 0}`, "employees"},
		{"missing initial cash", `{"employees": []}`, "initial_cash"},
		{"initial cash too large", `{"employees": [], "initial_cash": 1000000000001}`, "initial_cash"},
		{"blank name", `{"employees": [{"name": "  ", "amount": 1}], "initial_cash": 0}`, "employees[0].name"},
		{"duplicate name", `{"employees": [{"name": "A", "amount": 1}, {"name": "A", "amount": 2}], "initial_cash": 0}`, "employees[1].name"},
		{"missing amount", `{"employees": [{"name": "A"}], "initial_cash": 0}`, "employees[0].amount"},
		{"negative amount", `{"employees": [{"name": "A", "amount": -1}], "initial_cash": 0}`, "employees[0].amount"},
		{"fractional amount", `{"employees": [{"name": "A", "amount": 1.5}], "initial_cash": 0}`, "employees.amount"},
		{"string amount", `{"employees": [{"name": "A", "amount": "10"}], "initial_cash": 0}`, "employees.amount"},
		{"zero denomination", `{"employees": [], "bills": {"0": 1}, "initial_cash": 0}`, "bills"},
		{"non-numeric denomination", `{"employees": [], "coins": {"ten": 1}, "initial_cash": 0}`, "coins"},
		{"negative count", `{"employees": [], "coins": {"10": -1}, "initial_cash": 0}`, "coins"},
		{"fractional count", `{"employees": [], "coins": {"10": 1.5}, "initial_cash": 0}`, "coins"},
		{"bills not an object", `{"employees": [], "bills": [100], "initial_cash": 0}`, "bills"},
		{"denomination overflow", `{"employees": [], "bills": {"1000000": 1000000000}, "initial_cash": 0}`, "bills"},
		{"negative min cash", `{"employees": [], "initial_cash": 0, "min_cash": -1}`, "min_cash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDistributeRequest([]byte(tt.body), 0)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("error %v does not wrap ErrMalformedInput", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error %T is not a *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q (%v)", ve.Field, tt.wantField, err)
			}
		})
	}
}

func TestParseDistributeRequest_BodyLimit(t *testing.T) {
	body := `{"employees": [], "initial_cash": 0}`
	r := httptest.NewRequest("POST", "/distribute", strings.NewReader(body))

	if _, err := ParseDistributeRequest(r, int64(len(body)), 0); err != nil {
		t.Fatalf("body at limit rejected: %v", err)
	}

	r = httptest.NewRequest("POST", "/distribute", strings.NewReader(body))
	_, err := ParseDistributeRequest(r, int64(len(body))-1, 0)
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("oversized body error = %v, want ErrMalformedInput", err)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 20, false},
		{"?limit=5", 5, false},
		{"?limit=500", 100, false},
		{"?limit=0", 0, true},
		{"?limit=abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/distributions"+tt.query, nil)
			got, err := parseLimit(r, 20, 100)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLimit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLimit() = %d, want %d", got, tt.want)
			}
		})
	}
}
