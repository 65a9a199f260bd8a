package repository

import (
	"context"
	"fmt"
	"strings"
)

// Store drivers.
const (
	DriverMemory   = driverMemory
	DriverSQLite   = driverSQLite
	DriverPostgres = driverPostgres
)

// Open returns a migrated store for driver. For the memory driver a
// non-empty dsn names a JSON seed file.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverMemory, "":
		s := NewMemoryStore()
		if dsn != "" {
			if _, err := s.LoadFile(ctx, dsn); err != nil {
				return nil, err
			}
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres, "postgresql":
		s, err := NewPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}
