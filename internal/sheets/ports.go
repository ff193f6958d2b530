package sheets

import (
	"context"

	"entrate/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordExporter appends income records to an external ledger.
	RecordExporter interface {
		AppendRecord(ctx context.Context, row core.ExportRow) (rowRef string, err error)
	}
)
