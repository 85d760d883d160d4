package memory

import (
	"context"
	"sync"

	ports "tipsplit/internal/sheets"
	"tipsplit/internal/storage"
)

// Exporter keeps exported rows in memory. Used when no spreadsheet is
// configured and in tests.
type Exporter struct {
	mu        sync.Mutex
	exported  []string
	payees    [][]any
	transfers [][]any
	fail      error
}

var _ ports.DistributionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// ExportDistribution appends the record's rows.
func (e *Exporter) ExportDistribution(_ context.Context, record storage.DistributionRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fail != nil {
		return e.fail
	}

	rows, err := ports.BuildRows(record)
	if err != nil {
		return err
	}
	e.exported = append(e.exported, record.ID)
	e.payees = append(e.payees, rows.Payees...)
	e.transfers = append(e.transfers, rows.Transfers...)
	return nil
}

// FailWith makes every following export return err; nil restores normal behaviour.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

// Exported returns the ids exported so far, in order.
func (e *Exporter) Exported() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.exported...)
}

func (e *Exporter) PayeeRows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]any(nil), e.payees...)
}

func (e *Exporter) TransferRows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]any(nil), e.transfers...)
}
