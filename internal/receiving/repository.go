package receiving

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khlang-erp/khlang-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const lineQuery = `SELECT oi.id, o.id, o.number, o.user_id, o.branch_id,
	oi.product_id, COALESCE(p.name, ''), COALESCE(u.abbr, ''),
	pg.id, COALESCE(pg.name, ''),
	oi.quantity, oi.actual_quantity, COALESCE(oi.purchase_reason, ''),
	oi.received_quantity, oi.received_at
 FROM order_items oi
 JOIN orders o ON o.id = oi.order_id
 LEFT JOIN products p ON p.id = oi.product_id
 LEFT JOIN units u ON u.id = p.unit_id
 LEFT JOIN product_groups pg ON pg.id = COALESCE(p.product_group_id, p.legacy_supplier_id)`

func scanLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ItemID, &line.OrderID, &line.OrderNumber, &line.UserID, &line.BranchID,
			&line.ProductID, &line.ProductName, &line.UnitAbbr, &line.GroupID, &line.GroupName,
			&line.OrderedQuantity, &line.ActualQuantity, &line.PurchaseReason,
			&line.ReceivedQuantity, &line.ReceivedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListUserLines returns the user's receivable lines for the date.
func (r *Repository) ListUserLines(ctx context.Context, date time.Time, userID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx,
		lineQuery+` WHERE o.order_date = $1 AND o.user_id = $2 AND o.status <> 'CANCELLED' ORDER BY oi.id`,
		date, userID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

// ListBranchLines returns every receivable line of the branch for the date.
func (r *Repository) ListBranchLines(ctx context.Context, date time.Time, branchID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx,
		lineQuery+` WHERE o.order_date = $1 AND o.branch_id = $2 AND o.status <> 'CANCELLED' ORDER BY oi.id`,
		date, branchID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

// InsertManual stores one off-order receipt.
func (r *Repository) InsertManual(ctx context.Context, item ManualItem) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO manual_receiving_items (receive_date, branch_id, department_id, product_id, received_quantity, reason, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		item.ReceiveDate, item.BranchID, item.DepartmentID, item.ProductID, item.ReceivedQuantity, item.Reason, item.CreatedBy, item.CreatedAt,
	).Scan(&id)
	return id, err
}

// ListManual returns the manual items recorded for a date.
func (r *Repository) ListManual(ctx context.Context, date time.Time) ([]ManualItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.receive_date, m.branch_id, m.department_id, m.product_id, COALESCE(p.name, ''), m.received_quantity, m.reason, m.created_by, m.created_at
		 FROM manual_receiving_items m
		 LEFT JOIN products p ON p.id = m.product_id
		 WHERE m.receive_date = $1 ORDER BY m.id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ManualItem
	for rows.Next() {
		var item ManualItem
		if err := rows.Scan(&item.ID, &item.ReceiveDate, &item.BranchID, &item.DepartmentID, &item.ProductID, &item.ProductName,
			&item.ReceivedQuantity, &item.Reason, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (tx *txRepo) GetLine(ctx context.Context, itemID int64) (Line, error) {
	rows, err := tx.tx.Query(ctx, lineQuery+` WHERE oi.id = $1`, itemID)
	if err != nil {
		return Line{}, err
	}
	lines, err := scanLines(rows)
	if err != nil {
		return Line{}, err
	}
	if len(lines) == 0 {
		return Line{}, ErrNotFound
	}
	return lines[0], nil
}

func (tx *txRepo) ListProductLines(ctx context.Context, date time.Time, branchID, productID int64) ([]Line, error) {
	rows, err := tx.tx.Query(ctx,
		lineQuery+` WHERE o.order_date = $1 AND o.branch_id = $2 AND oi.product_id = $3 AND o.status <> 'CANCELLED' ORDER BY oi.id`,
		date, branchID, productID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (tx *txRepo) SetReceived(ctx context.Context, itemID int64, quantity float64, at time.Time) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE order_items SET received_quantity = $1, received_at = $2 WHERE id = $3`,
		quantity, at, itemID)
	return err
}

func (tx *txRepo) ClearReceivedAt(ctx context.Context, itemID int64) error {
	_, err := tx.tx.Exec(ctx, `UPDATE order_items SET received_at = NULL WHERE id = $1`, itemID)
	return err
}
