package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenSQL opens and pings the database behind the persistence gateway.
func OpenSQL(ctx context.Context, d Dialect, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open(d.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 16
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = pool.MaxOpenConns
	}
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping failed: %w", d.Name, err)
	}
	return db, nil
}

// execVersioned runs a conditional write and maps "no row matched" and duplicate
// inserts onto usecase.ErrVersionConflict.
func execVersioned(ctx context.Context, db *sql.DB, d Dialect, q string, args ...any) error {
	res, err := db.ExecContext(ctx, d.Rebind(q), args...)
	if err != nil {
		if d.IsUniqueViolation(err) {
			return errVersionConflict
		}
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// rows == 0 → either gone or someone else bumped the version first
	if rows == 0 {
		return errVersionConflict
	}
	return nil
}
