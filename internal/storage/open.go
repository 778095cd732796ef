package storage

import (
	"context"
	"fmt"
)

// Open returns the journal for driver: "sqlite" (path), "postgres" (dsn) or
// "none".
func Open(ctx context.Context, driver, path, dsn string) (Journal, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(path)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal driver %q", driver)
	}
}
