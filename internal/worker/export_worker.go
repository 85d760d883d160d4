package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tipsplit/internal/amqp"
	applog "tipsplit/internal/log"
	"tipsplit/internal/metrics"
	"tipsplit/internal/sheets"
	"tipsplit/internal/storage"
)

// DefaultClaimTTL is how long an export claim holds before another worker
// may take the record over.
const DefaultClaimTTL = 5 * time.Minute

// ExportWorker copies recorded distributions to the spreadsheet. A record is
// claimed in history before it is exported, so the consumer and the sweeper
// never export it twice.
type ExportWorker struct {
	history   storage.Repository
	exporter  sheets.DistributionExporter
	metrics   *metrics.Metrics
	logger    *applog.Logger
	batchSize int
	claimTTL  time.Duration
	now       func() time.Time
}

func NewExportWorker(history storage.Repository, exporter sheets.DistributionExporter, m *metrics.Metrics, logger *applog.Logger, batchSize int) *ExportWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		history:   history,
		exporter:  exporter,
		metrics:   m,
		logger:    logger.WithComponent(applog.ComponentWorker),
		batchSize: batchSize,
		claimTTL:  DefaultClaimTTL,
		now:       time.Now,
	}
}

// HandleRecordedMessage exports the distribution named by msg. Unknown ids
// are dropped; export failures are returned so the message is requeued.
func (w *ExportWorker) HandleRecordedMessage(ctx context.Context, msg *amqp.DistributionRecordedMessage) error {
	w.logger.DebugContext(ctx, "Processing recorded message",
		applog.FieldDistributionID, msg.ID,
		"timestamp", msg.Timestamp)

	record, err := w.history.Get(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Distribution not in history, dropping message",
			applog.FieldDistributionID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get distribution from storage: %w", err)
	}

	if record.Exported() {
		w.logger.DebugContext(ctx, "Distribution already exported",
			applog.FieldDistributionID, msg.ID)
		return nil
	}

	_, err = w.export(ctx, record)
	return err
}

// ProcessPending exports up to one batch of records that have not been
// exported yet. Covers messages lost while the worker was down.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.history.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	exported := 0
	for _, record := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		done, err := w.export(ctx, record)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to export distribution",
				applog.FieldDistributionID, record.ID,
				applog.FieldError, err)
			continue
		}
		if done {
			exported++
		}
	}

	w.logger.InfoContext(ctx, "Pending exports processed",
		"total", len(pending),
		"exported", exported,
		"errors", len(pending)-exported)
	return exported, nil
}

// export claims record and writes it to the spreadsheet. It reports false
// when another worker holds the claim or already exported it.
func (w *ExportWorker) export(ctx context.Context, record storage.DistributionRecord) (bool, error) {
	now := w.now()
	claimed, err := w.history.ClaimExport(ctx, record.ID, now, now.Add(-w.claimTTL))
	if err != nil {
		return false, fmt.Errorf("claim distribution %s: %w", record.ID, err)
	}
	if !claimed {
		w.logger.DebugContext(ctx, "Distribution exported or claimed elsewhere",
			applog.FieldDistributionID, record.ID)
		return false, nil
	}

	err = w.exporter.ExportDistribution(ctx, record)
	w.metrics.ObserveExport(err)
	if err != nil {
		if relErr := w.history.ReleaseExport(ctx, record.ID); relErr != nil {
			w.logger.ErrorContext(ctx, "Failed to release export claim",
				applog.FieldDistributionID, record.ID,
				applog.FieldError, relErr)
		}
		return false, fmt.Errorf("export distribution %s: %w", record.ID, err)
	}

	// the rows are already written; a marking failure leaves the claim to
	// expire, after which the sweeper exports again
	if err := w.history.MarkExported(ctx, record.ID, w.now()); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark distribution exported",
			applog.FieldDistributionID, record.ID,
			applog.FieldError, err)
		return true, nil
	}

	w.logger.InfoContext(ctx, "Distribution exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldDistributionID, record.ID,
		applog.FieldPayees, record.Payees,
		applog.FieldTransfers, record.Transfers)
	return true, nil
}
