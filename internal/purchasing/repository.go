package purchasing

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khlang-erp/khlang-erp/internal/orders"
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

const lineColumns = `oi.id, oi.order_id, oi.product_id, COALESCE(p.name, ''),
	oi.quantity, oi.requested_price, oi.is_purchased`

func (tx *txRepo) ListProductLines(ctx context.Context, date time.Time, productID int64) ([]Line, error) {
	rows, err := tx.tx.Query(ctx,
		`SELECT `+lineColumns+`
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 LEFT JOIN products p ON p.id = oi.product_id
		 WHERE o.order_date = $1 AND oi.product_id = $2 AND o.status <> 'CANCELLED'
		 ORDER BY oi.id`, date, productID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (tx *txRepo) ListGroupLines(ctx context.Context, date time.Time, groupID int64) ([]Line, error) {
	rows, err := tx.tx.Query(ctx,
		`SELECT `+lineColumns+`
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 LEFT JOIN products p ON p.id = oi.product_id
		 WHERE o.order_date = $1 AND o.status <> 'CANCELLED'
		   AND COALESCE(p.product_group_id, p.legacy_supplier_id) = $2
		 ORDER BY oi.id`, date, groupID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func scanLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ItemID, &line.OrderID, &line.ProductID, &line.ProductName,
			&line.Quantity, &line.RequestedPrice, &line.IsPurchased); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (tx *txRepo) UpdatePurchase(ctx context.Context, itemID int64, actualPrice, actualQuantity *float64, purchased bool, reason *string) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE order_items
		 SET actual_price = $1, actual_quantity = $2, is_purchased = $3, purchase_reason = $4
		 WHERE id = $5`,
		actualPrice, actualQuantity, purchased, reason, itemID)
	return err
}

func (tx *txRepo) CountUnpurchased(ctx context.Context, orderID int64) (int, error) {
	var count int
	err := tx.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_items WHERE order_id = $1 AND NOT is_purchased`, orderID,
	).Scan(&count)
	return count, err
}

func (tx *txRepo) SetOrderStatus(ctx context.Context, orderID int64, status orders.Status) (bool, error) {
	tag, err := tx.tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status <> $1`,
		string(status), orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
