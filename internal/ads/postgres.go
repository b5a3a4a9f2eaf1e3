package ads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresCatalog persists the ad catalog in Postgres. Targeting criteria are
// stored as a JSONB column.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog creates a catalog backed by the given connection pool.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// CreateAd inserts a new ad.
func (c *PostgresCatalog) CreateAd(ctx context.Context, a Ad) error {
	criteria, err := json.Marshal(a.TargetCriteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO ads (id, business_id, title, target_criteria, view_count, active, budget, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.ID, a.BusinessID, a.Title, criteria, a.ViewCount, a.Active, a.Budget, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ad: %w", err)
	}
	return nil
}

// GetAd returns a single ad or ErrNotFound.
func (c *PostgresCatalog) GetAd(ctx context.Context, id string) (*Ad, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, business_id, title, target_criteria, view_count, active, budget, created_at
		FROM ads WHERE id = $1
	`, id)
	ad, err := scanAd(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ad: %w", err)
	}
	return ad, nil
}

// ListActive returns a snapshot of active ads in creation order.
func (c *PostgresCatalog) ListActive(ctx context.Context) ([]Ad, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, business_id, title, target_criteria, view_count, active, budget, created_at
		FROM ads WHERE active = TRUE
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active ads: %w", err)
	}
	defer rows.Close()

	var out []Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		out = append(out, *ad)
	}
	return out, rows.Err()
}

// IncrementView bumps the view counter in place. Unknown IDs update zero
// rows, which is the required no-op.
func (c *PostgresCatalog) IncrementView(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE ads SET view_count = view_count + 1 WHERE id = $1
	`, id)
	if err != nil {
		return false, fmt.Errorf("increment view count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment view rows: %w", err)
	}
	return affected > 0, nil
}

// Deactivate marks an ad inactive.
func (c *PostgresCatalog) Deactivate(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE ads SET active = FALSE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate ad: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate ad rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAd(row rowScanner) (*Ad, error) {
	var ad Ad
	var criteria []byte
	if err := row.Scan(&ad.ID, &ad.BusinessID, &ad.Title, &criteria, &ad.ViewCount, &ad.Active, &ad.Budget, &ad.CreatedAt); err != nil {
		return nil, err
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &ad.TargetCriteria); err != nil {
			return nil, fmt.Errorf("unmarshal criteria: %w", err)
		}
	}
	return &ad, nil
}
