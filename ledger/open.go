package ledger

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-torrent-relay/config"
)

// Open returns the ledger backend selected by cfg.
func Open(ctx context.Context, cfg *config.Config) (Ledger, error) {
	switch cfg.LedgerBackend {
	case config.LedgerMemory, "":
		return NewMemory(cfg.LedgerMaxEntries)
	case config.LedgerSQLite:
		return OpenSQLite(ctx, cfg.LedgerPath)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}
