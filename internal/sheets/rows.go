package sheets

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tipsplit/internal/services"
	"tipsplit/internal/storage"
)

// Column headers of the two export sheets.
var (
	PayeeHeader    = []any{"Distribution", "Recorded At", "Name", "Total", "Cash Given", "Bills", "Coins", "Bit Needed", "Bit To Send"}
	TransferHeader = []any{"Distribution", "Recorded At", "From", "To", "Amount"}
)

// Rows is a record flattened for export: one row per payee, one per transfer.
type Rows struct {
	Payees    [][]any
	Transfers [][]any
}

// BuildRows decodes the stored response of record and flattens it.
func BuildRows(record storage.DistributionRecord) (Rows, error) {
	var resp services.Response
	if err := json.Unmarshal(record.Response, &resp); err != nil {
		return Rows{}, fmt.Errorf("decode distribution %s: %w", record.ID, err)
	}

	recordedAt := record.CreatedAt.UTC().Format(time.RFC3339)
	rows := Rows{
		Payees:    make([][]any, 0, len(resp.Employees)),
		Transfers: make([][]any, 0, len(resp.BitTransfers)),
	}
	for _, e := range resp.Employees {
		rows.Payees = append(rows.Payees, []any{
			record.ID, recordedAt, e.Name, e.Total, e.CashGiven,
			FormatDenominations(e.Bills), FormatDenominations(e.Coins),
			e.BitNeeded, e.BitToSend,
		})
	}
	for _, t := range resp.BitTransfers {
		rows.Transfers = append(rows.Transfers, []any{record.ID, recordedAt, t.From, t.To, t.Amount})
	}
	return rows, nil
}

// FormatDenominations renders counts as "100x2 50x1", highest face value first.
func FormatDenominations(counts map[string]int64) string {
	type entry struct {
		value int64
		key   string
		count int64
	}
	entries := make([]entry, 0, len(counts))
	for k, n := range counts {
		if n <= 0 {
			continue
		}
		v, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, entry{value: v, key: k, count: n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].value > entries[j].value })

	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%sx%d", e.key, e.count)
	}
	return strings.Join(parts, " ")
}
