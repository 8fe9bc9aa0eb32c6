package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khlang-erp/khlang-erp/internal/aggregation"
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

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateOrder(ctx context.Context, order Order) (int64, error)
	InsertItem(ctx context.Context, item Item) error
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, itemID int64) error
	DeleteItems(ctx context.Context, orderID int64) error
	DeleteOrder(ctx context.Context, orderID int64) error
	UpdateStatusTotal(ctx context.Context, orderID int64, status Status, total float64) error
	ClearReconciliation(ctx context.Context, orderID int64) error
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

// GetOrder returns the order header and items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, []Item, error) {
	var order Order
	err := r.pool.QueryRow(ctx,
		`SELECT id, number, branch_id, department_id, user_id, order_date, status, total_amount, transferred_from, created_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.Number, &order.BranchID, &order.DepartmentID, &order.UserID,
		&order.OrderDate, &order.Status, &order.TotalAmount, &order.TransferredFrom, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, ErrNotFound
		}
		return Order{}, nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity, requested_price, notes,
		        actual_price, actual_quantity, is_purchased, purchase_reason,
		        received_quantity, received_at
		 FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
			&item.RequestedPrice, &item.Notes, &item.ActualPrice, &item.ActualQuantity,
			&item.IsPurchased, &item.PurchaseReason, &item.ReceivedQuantity, &item.ReceivedAt); err != nil {
			return Order{}, nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

// ListByUserDate returns the user's orders for a date.
func (r *Repository) ListByUserDate(ctx context.Context, userID int64, date time.Time) ([]Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, branch_id, department_id, user_id, order_date, status, total_amount, transferred_from, created_at
		 FROM orders WHERE user_id = $1 AND order_date = $2 ORDER BY created_at`, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.Number, &order.BranchID, &order.DepartmentID, &order.UserID,
			&order.OrderDate, &order.Status, &order.TotalAmount, &order.TransferredFrom, &order.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ListItemDetails returns denormalized item rows for the date. The
// legacy supplier column still feeds product grouping for rows predating
// the product-group migration.
func (r *Repository) ListItemDetails(ctx context.Context, date time.Time, status Status) ([]aggregation.Item, error) {
	query := `SELECT oi.id, o.id, o.number, oi.product_id, COALESCE(p.name, ''),
	                 COALESCE(u.abbr, ''), pg.id, COALESCE(pg.name, ''),
	                 o.branch_id, COALESCE(b.name, ''),
	                 o.department_id, COALESCE(d.name, ''),
	                 oi.quantity, oi.requested_price, oi.actual_price, oi.is_purchased,
	                 COALESCE(oi.purchase_reason, '')
	          FROM order_items oi
	          JOIN orders o ON o.id = oi.order_id
	          LEFT JOIN products p ON p.id = oi.product_id
	          LEFT JOIN units u ON u.id = p.unit_id
	          LEFT JOIN product_groups pg ON pg.id = COALESCE(p.product_group_id, p.legacy_supplier_id)
	          LEFT JOIN branches b ON b.id = o.branch_id
	          LEFT JOIN departments d ON d.id = o.department_id
	          WHERE o.order_date = $1 AND o.status <> 'CANCELLED'`
	args := []any{date}
	if status != "" {
		query += ` AND o.status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY oi.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []aggregation.Item
	for rows.Next() {
		var item aggregation.Item
		var requested *float64
		if err := rows.Scan(&item.OrderItemID, &item.OrderID, &item.OrderNumber, &item.ProductID,
			&item.ProductName, &item.UnitAbbr, &item.GroupID, &item.GroupName,
			&item.BranchID, &item.BranchName, &item.DepartmentID, &item.DepartmentName,
			&item.Quantity, &requested, &item.ActualPrice, &item.IsPurchased, &item.PurchaseReason); err != nil {
			return nil, err
		}
		item.RequestedPrice = requested
		items = append(items, item)
	}
	return items, rows.Err()
}

// ResetByDate clears reconciliation fields and forces draft on every
// order of the date.
func (r *Repository) ResetByDate(ctx context.Context, date time.Time) (int, error) {
	return r.reset(ctx, `WHERE order_date = $1`, date)
}

// ResetAll clears reconciliation on every order in the system.
func (r *Repository) ResetAll(ctx context.Context) (int, error) {
	return r.reset(ctx, ``)
}

func (r *Repository) reset(ctx context.Context, where string, args ...any) (int, error) {
	var updated int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE order_items SET actual_price = NULL, actual_quantity = NULL, is_purchased = FALSE,
			        purchase_reason = NULL, received_quantity = NULL, received_at = NULL
			 WHERE order_id IN (SELECT id FROM orders `+where+`)`, args...)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE orders SET status = 'DRAFT', updated_at = NOW() `+where, args...)
		if err != nil {
			return err
		}
		updated = int(tag.RowsAffected())
		return nil
	})
	return updated, err
}

func (tx *txRepo) CreateOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx,
		`INSERT INTO orders (number, branch_id, department_id, user_id, order_date, status, total_amount, transferred_from, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING id`,
		order.Number, order.BranchID, order.DepartmentID, order.UserID, order.OrderDate,
		string(order.Status), order.TotalAmount, order.TransferredFrom,
	).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertItem(ctx context.Context, item Item) error {
	_, err := tx.tx.Exec(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, requested_price, notes)
		 VALUES ($1, $2, $3, $4, $5)`,
		item.OrderID, item.ProductID, item.Quantity, item.RequestedPrice, item.Notes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateProduct
	}
	return err
}

func (tx *txRepo) UpdateItem(ctx context.Context, item Item) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE order_items SET quantity = $1, requested_price = $2, notes = $3 WHERE id = $4`,
		item.Quantity, item.RequestedPrice, item.Notes, item.ID)
	return err
}

func (tx *txRepo) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, itemID)
	return err
}

func (tx *txRepo) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	return err
}

func (tx *txRepo) DeleteOrder(ctx context.Context, orderID int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	return err
}

func (tx *txRepo) UpdateStatusTotal(ctx context.Context, orderID int64, status Status, total float64) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE orders SET status = $1, total_amount = $2, updated_at = NOW() WHERE id = $3`,
		string(status), total, orderID)
	return err
}

func (tx *txRepo) ClearReconciliation(ctx context.Context, orderID int64) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE order_items SET actual_price = NULL, actual_quantity = NULL, is_purchased = FALSE,
		        purchase_reason = NULL, received_quantity = NULL, received_at = NULL
		 WHERE order_id = $1`, orderID)
	return err
}
