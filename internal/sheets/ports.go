package sheets

import (
	"context"

	"tresor/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter exports one committed transaction to the
	// external spreadsheet.
	TransactionWriter interface {
		Append(ctx context.Context, userID string, tx core.Transaction) (rowRef string, err error)
	}
)
