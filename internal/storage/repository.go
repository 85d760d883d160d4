// Package storage keeps the audit history of completed distributions.
// History is write-once: nothing read back from it feeds a later allocation.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("distribution not found")

// DistributionRecord is one completed distribution as stored in history.
type DistributionRecord struct {
	ID        string
	CreatedAt time.Time

	// Request and Response are the JSON documents exchanged with the caller.
	Request  []byte
	Response []byte

	TotalCashDistributed int64
	BitTotal             int64
	RemainingInRegister  int64
	Payees               int
	Transfers            int

	ExportedAt *time.Time
}

// Exported reports whether the record already reached the spreadsheet.
func (r DistributionRecord) Exported() bool {
	return r.ExportedAt != nil
}

// Repository is implemented by SQLiteRepository and MemoryRepository.
type Repository interface {
	Save(ctx context.Context, record DistributionRecord) error
	Get(ctx context.Context, id string) (DistributionRecord, error)
	// List returns the newest records first; limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]DistributionRecord, error)
	// ListPendingExport returns unexported records, oldest first.
	ListPendingExport(ctx context.Context, limit int) ([]DistributionRecord, error)
	// ClaimExport reserves an unexported record for one exporter. It reports
	// false when the record is unknown, already exported, or claimed at or
	// after staleBefore.
	ClaimExport(ctx context.Context, id string, at, staleBefore time.Time) (bool, error)
	// ReleaseExport drops the claim after a failed export.
	ReleaseExport(ctx context.Context, id string) error
	// MarkExported records the export and clears the claim.
	MarkExported(ctx context.Context, id string, at time.Time) error
	Ping(ctx context.Context) error
	Close() error
}
