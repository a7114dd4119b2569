// internal/bot/journal.go
package bot

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/storage"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage/memory"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage/postgres"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage/sqlite"
)

// openJournal picks the attempt store by DSN scheme: empty keeps attempts in memory,
// postgres:// and sqlite://<path> persist them.
func openJournal(ctx context.Context, dsn string, logger *zap.Logger) (storage.AttemptStore, string, error) {
	if dsn == "" {
		return memory.NewAttemptStore(), "memory", nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, "", fmt.Errorf("journal dsn: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		store, err := postgres.Open(ctx, dsn, logger.Named("journal"))
		if err != nil {
			return nil, "", err
		}
		return store, "postgres", nil
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(dsn, u.Scheme+"://")
		if path == "" {
			return nil, "", fmt.Errorf("journal dsn %q: empty sqlite path", dsn)
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, "", err
		}
		return store, "sqlite", nil
	default:
		return nil, "", fmt.Errorf("journal dsn: unsupported scheme %q", u.Scheme)
	}
}
