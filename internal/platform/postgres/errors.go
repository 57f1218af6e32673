package postgres

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/printtrack/printtrack/internal/store"
)

// connectionErrorClass is the PostgreSQL SQLSTATE class for connection
// exceptions.
const connectionErrorClass = "08"

// mapError classifies low-level database failures. Connection-level
// failures are wrapped in store.ErrStoreUnavailable so callers can
// report the persistence layer as unreachable; everything else is
// wrapped with the failing operation for context.
func mapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if isConnectionError(err) {
		return fmt.Errorf("%w: %s: %v", store.ErrStoreUnavailable, operation, err)
	}

	return fmt.Errorf("%s: %w", operation, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == connectionErrorClass {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
