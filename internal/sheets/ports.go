package sheets

import (
	"context"

	"tipsplit/internal/storage"
)

// Ports for outbound adapters.
type (
	// DistributionExporter writes a recorded distribution to a spreadsheet.
	DistributionExporter interface {
		ExportDistribution(ctx context.Context, record storage.DistributionRecord) error
	}
)
