package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/simdash/marktracker/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, market_id, side, bet_amount,
	entry_yes_price, entry_no_price,
	current_yes_price, current_no_price, priced_at,
	expected_payout, unrealized_pnl,
	status, created_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var (
		p        domain.Position
		side     string
		status   string
		pricedAt *time.Time
	)

	err := row.Scan(
		&p.ID, &p.MarketID, &side, &p.Bet,
		&p.EntryYesPrice, &p.EntryNoPrice,
		&p.CurrentYesPrice, &p.CurrentNoPrice, &pricedAt,
		&p.ExpectedPayout, &p.UnrealizedPnL,
		&status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Side = domain.Side(side)
	p.Status = domain.PositionStatus(status)
	if pricedAt != nil {
		p.PricedAt = *pricedAt
	}
	return p, nil
}

func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts a new simulated position.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, market_id, side, bet_amount,
			entry_yes_price, entry_no_price,
			current_yes_price, current_no_price, priced_at,
			expected_payout, unrealized_pnl,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9,
			$10, $11,
			$12, $13, $14
		)`

	var pricedAt *time.Time
	if !p.PricedAt.IsZero() {
		pricedAt = &p.PricedAt
	}

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.MarketID, string(p.Side), p.Bet,
		p.EntryYesPrice, p.EntryNoPrice,
		p.CurrentYesPrice, p.CurrentNoPrice, pricedAt,
		p.ExpectedPayout, p.UnrealizedPnL,
		string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListOpen returns every open position across all markets.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status = 'open'
		 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return positions, nil
}

// ListRecent returns the most recently created positions, open or resolved.
func (s *PositionStore) ListRecent(ctx context.Context, limit int) ([]domain.Position, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent positions: %w", err)
	}
	return positions, nil
}

// ApplyValuation overwrites the current odds and derived valuation fields of
// one open position. The status guard keeps resolved positions frozen even
// if a stale cycle tries to touch them; that case surfaces as ErrNotFound.
func (s *PositionStore) ApplyValuation(ctx context.Context, id string, upd domain.ValuationUpdate) error {
	const query = `
		UPDATE positions SET
			current_yes_price = $2,
			current_no_price  = $3,
			priced_at         = $4,
			expected_payout   = $5,
			unrealized_pnl    = $6,
			updated_at        = NOW()
		WHERE id = $1 AND status = 'open'`

	tag, err := s.pool.Exec(ctx, query,
		id, upd.YesPrice, upd.NoPrice, upd.PricedAt,
		upd.ExpectedPayout, upd.UnrealizedPnL,
	)
	if err != nil {
		return fmt.Errorf("postgres: apply valuation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkResolved freezes a position. Used by the resolution process; the
// tracker never calls this.
func (s *PositionStore) MarkResolved(ctx context.Context, id string, resolvedAt time.Time) error {
	const query = `
		UPDATE positions SET
			status      = 'resolved',
			resolved_at = $2,
			updated_at  = NOW()
		WHERE id = $1 AND status = 'open'`

	tag, err := s.pool.Exec(ctx, query, id, resolvedAt)
	if err != nil {
		return fmt.Errorf("postgres: mark position %s resolved: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
