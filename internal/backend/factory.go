package backend

import (
	"context"
	"errors"
	"fmt"

	"tipsplit/internal/amqp"
	applog "tipsplit/internal/log"
	"tipsplit/internal/sheets"
	gsheet "tipsplit/internal/sheets/google"
	"tipsplit/internal/sheets/memory"
	"tipsplit/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentStorage),
	}
}

// CreateBackend opens the history backend and, for sqlite, the optional
// AMQP client. An unreachable broker is logged and left out.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		f.logger.InfoContext(ctx, "Initialized memory history backend")
		repo := storage.NewMemoryRepository()
		return &BackendResult{History: repo, Cleanup: repo.Close}, nil
	case NoneBackend:
		f.logger.InfoContext(ctx, "Distribution history disabled")
		return &BackendResult{Cleanup: func() error { return nil }}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				applog.FieldError, err)
			amqpClient = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Initialized SQLite history backend",
		"db_path", config.SQLiteDBPath,
		"schema_version", sqliteRepo.SchemaVersion(),
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		History: sqliteRepo,
		AMQP:    amqpClient,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				if err := amqpClient.Close(); err != nil {
					errs = append(errs, fmt.Errorf("amqp: %w", err))
				}
			}
			if err := sqliteRepo.Close(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
			return errors.Join(errs...)
		},
	}, nil
}

// CreateExporter returns the Google Sheets exporter when a spreadsheet is
// configured and the in-memory exporter otherwise.
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.DistributionExporter, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.WarnContext(ctx, "No spreadsheet configured, exporting to memory")
		return memory.New(), nil
	}

	exporter, err := gsheet.NewFromConfig(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		DistributionsSheet: config.GoogleSheetName,
		TransfersSheet:     config.GoogleTransfersSheetName,
		CredentialsJSON:    config.GoogleServiceAccountJSON,
		CredentialsFile:    config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}

	if err := exporter.EnsureHeaders(ctx); err != nil {
		f.logger.WarnContext(ctx, "Could not write sheet headers", applog.FieldError, err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets exporter",
		"spreadsheet_id", config.GoogleSpreadsheetID)
	return exporter, nil
}
