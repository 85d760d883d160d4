package services

import (
	"strconv"

	"tipsplit/internal/core"
)

const StatusOK = "ok"

// Response is the JSON document returned for a distribution and stored in
// history.
type Response struct {
	ID           string         `json:"id,omitempty"`
	Status       string         `json:"status"`
	Summary      SummaryView    `json:"summary"`
	Employees    []EmployeeView `json:"employees"`
	BitTransfers []TransferView `json:"bit_transfers"`
}

type SummaryView struct {
	TotalCashDistributed int64 `json:"total_cash_distributed"`
	BitTotal             int64 `json:"bit_total"`
	RemainingInRegister  int64 `json:"remaining_in_register"`
}

type EmployeeView struct {
	Name      string           `json:"name"`
	Total     int64            `json:"total"`
	CashGiven int64            `json:"cash_given"`
	Bills     map[string]int64 `json:"bills"`
	Coins     map[string]int64 `json:"coins"`
	BitNeeded int64            `json:"bit_needed"`
	BitToSend int64            `json:"bit_to_send"`
}

type TransferView struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// NewResponse renders a core result. Employees keep allocation order.
func NewResponse(id string, result core.Result) Response {
	resp := Response{
		ID:     id,
		Status: StatusOK,
		Summary: SummaryView{
			TotalCashDistributed: result.Summary.TotalCashDistributed,
			BitTotal:             result.Summary.BitTotal,
			RemainingInRegister:  result.Summary.RemainingInRegister,
		},
		Employees:    make([]EmployeeView, 0, len(result.Allocations)),
		BitTransfers: make([]TransferView, 0, len(result.Transfers)),
	}

	for _, a := range result.Allocations {
		resp.Employees = append(resp.Employees, EmployeeView{
			Name:      a.Name,
			Total:     a.Requested,
			CashGiven: a.Given,
			Bills:     denominationKeys(a.Bills),
			Coins:     denominationKeys(a.Coins),
			BitNeeded: a.Shortfall,
			BitToSend: a.Surplus,
		})
	}
	for _, t := range result.Transfers {
		resp.BitTransfers = append(resp.BitTransfers, TransferView{From: t.From, To: t.To, Amount: t.Amount})
	}
	return resp
}

func denominationKeys(counts map[core.Denomination]int64) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for d, n := range counts {
		if n > 0 {
			out[strconv.FormatInt(int64(d), 10)] = n
		}
	}
	return out
}
