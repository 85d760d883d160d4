package backend

import (
	"context"

	"tipsplit/internal/amqp"
	"tipsplit/internal/services"
	"tipsplit/internal/sheets"
	"tipsplit/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the history backend and the optional event client.
type BackendResult struct {
	// History is nil for the none backend.
	History storage.Repository
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// The distribution service pings the client for readiness.
var _ interface{ Ping() error } = (*amqp.Client)(nil)

// Publisher returns the event publisher, or nil when AMQP is not connected.
func (r *BackendResult) Publisher() services.Publisher {
	if r == nil || r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateExporter(ctx context.Context, config Config) (sheets.DistributionExporter, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export, optional
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleTransfersSheetName string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of history backend
type BackendType string

const (
	NoneBackend   BackendType = "none"
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case NoneBackend, MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
