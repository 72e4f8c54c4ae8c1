package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-pickup/internal/entity"
	"github.com/aq2208/gorder-pickup/internal/usecase"
)

type SQLLoyaltyRepo struct {
	db *sql.DB
	d  Dialect
}

func NewSQLLoyaltyRepo(db *sql.DB, d Dialect) *SQLLoyaltyRepo { return &SQLLoyaltyRepo{db: db, d: d} }

func (r *SQLLoyaltyRepo) GetLoyaltyProfile(ctx context.Context, customerID string) (*domain.LoyaltyProfile, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`
SELECT customer_id,lifetime_spend,points,unlocked_json,updated_at,version
FROM loyalty_profiles WHERE customer_id=?`), customerID)

	var (
		p        domain.LoyaltyProfile
		unlocked []byte
	)
	err := row.Scan(&p.CustomerID, &p.LifetimeSpend, &p.Points, &unlocked, &p.UpdatedAt, &p.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	if len(unlocked) > 0 {
		if err := json.Unmarshal(unlocked, &keys); err != nil {
			return nil, fmt.Errorf("decode unlocked milestones of %s: %w", customerID, err)
		}
	}
	p.Unlocked = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		p.Unlocked[k] = struct{}{}
	}
	return &p, nil
}

func (r *SQLLoyaltyRepo) SaveLoyaltyProfile(ctx context.Context, p *domain.LoyaltyProfile, expectedVersion int64) error {
	unlocked, err := json.Marshal(p.UnlockedKeys())
	if err != nil {
		return fmt.Errorf("encode unlocked milestones: %w", err)
	}
	if expectedVersion == 0 {
		err = execVersioned(ctx, r.db, r.d, `
INSERT INTO loyalty_profiles (customer_id,lifetime_spend,points,unlocked_json,updated_at,version)
VALUES (?,?,?,?,?,1)`,
			p.CustomerID, p.LifetimeSpend, p.Points, string(unlocked), p.UpdatedAt)
		if err != nil {
			return err
		}
		p.Version = 1
		return nil
	}

	err = execVersioned(ctx, r.db, r.d, `
UPDATE loyalty_profiles
SET lifetime_spend = ?, points = ?, unlocked_json = ?, updated_at = ?, version = version + 1
WHERE customer_id = ? AND version = ?`,
		p.LifetimeSpend, p.Points, string(unlocked), p.UpdatedAt, p.CustomerID, expectedVersion)
	if err != nil {
		return err
	}
	p.Version = expectedVersion + 1
	return nil
}

var _ usecase.LoyaltyRepo = (*SQLLoyaltyRepo)(nil)
