package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aq2208/gorder-pickup/internal/usecase"
)

// SQLCustomerDirectory reads the customers table owned by the registration service.
type SQLCustomerDirectory struct {
	db *sql.DB
	d  Dialect
}

func NewSQLCustomerDirectory(db *sql.DB, d Dialect) *SQLCustomerDirectory {
	return &SQLCustomerDirectory{db: db, d: d}
}

func (r *SQLCustomerDirectory) Exists(ctx context.Context, customerID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT 1 FROM customers WHERE id=?`), customerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLCustomerDirectory) ListCustomerIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM customers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ usecase.CustomerDirectory = (*SQLCustomerDirectory)(nil)
