package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"WerchterMonitor/internal/ports"
)

// Supported persister drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// OpenPersister builds the persister for driver. The returned close func is
// never nil.
func OpenPersister(ctx context.Context, driver, path string, logger *slog.Logger) (ports.RecordPersister, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverJSON:
		return NewJSONFile(path, logger), func() error { return nil }, nil
	case DriverSQLite:
		db, err := OpenSQLite(ctx, path, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
