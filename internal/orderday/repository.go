package orderday

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed gate persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches the gate record for (date, branch).
func (r *Repository) Get(ctx context.Context, date time.Time, branchID int64) (DayStatus, bool, error) {
	var status DayStatus
	err := r.pool.QueryRow(ctx,
		`SELECT order_date, branch_id, is_open FROM order_day_status WHERE order_date = $1 AND branch_id = $2`,
		date, branchID,
	).Scan(&status.OrderDate, &status.BranchID, &status.IsOpen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DayStatus{}, false, nil
		}
		return DayStatus{}, false, err
	}
	return status, true, nil
}

// Upsert writes the gate flag, overwriting any previous value.
func (r *Repository) Upsert(ctx context.Context, status DayStatus) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO order_day_status (order_date, branch_id, is_open, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (order_date, branch_id)
		 DO UPDATE SET is_open = EXCLUDED.is_open, updated_at = NOW()`,
		status.OrderDate, status.BranchID, status.IsOpen,
	)
	return err
}

// ListRange returns stored records for [from, to] and branch.
func (r *Repository) ListRange(ctx context.Context, from, to time.Time, branchID int64) ([]DayStatus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_date, branch_id, is_open FROM order_day_status
		 WHERE order_date BETWEEN $1 AND $2 AND branch_id IN ($3, $4)
		 ORDER BY order_date, branch_id`,
		from, to, branchID, GlobalBranch,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []DayStatus
	for rows.Next() {
		var st DayStatus
		if err := rows.Scan(&st.OrderDate, &st.BranchID, &st.IsOpen); err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// CloseBefore flips every open gate older than cutoff to closed.
func (r *Repository) CloseBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE order_day_status SET is_open = FALSE, updated_at = NOW()
		 WHERE order_date < $1 AND is_open = TRUE`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
