package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khlang-erp/khlang-erp/internal/aggregation"
)

// Repository provides PostgreSQL backed lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct returns one product with its unit and group names resolved.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var product Product
	err := r.pool.QueryRow(ctx,
		`SELECT p.id, p.name, p.unit_id, COALESCE(u.abbr, ''),
		        COALESCE(p.product_group_id, p.legacy_supplier_id), COALESCE(pg.name, ''), p.is_active
		 FROM products p
		 LEFT JOIN units u ON u.id = p.unit_id
		 LEFT JOIN product_groups pg ON pg.id = COALESCE(p.product_group_id, p.legacy_supplier_id)
		 WHERE p.id = $1`, id,
	).Scan(&product.ID, &product.Name, &product.UnitID, &product.UnitAbbr,
		&product.GroupID, &product.GroupName, &product.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return product, nil
}

// ListProducts returns active products ordered by name.
func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.unit_id, COALESCE(u.abbr, ''),
		        COALESCE(p.product_group_id, p.legacy_supplier_id), COALESCE(pg.name, ''), p.is_active
		 FROM products p
		 LEFT JOIN units u ON u.id = p.unit_id
		 LEFT JOIN product_groups pg ON pg.id = COALESCE(p.product_group_id, p.legacy_supplier_id)
		 WHERE p.is_active ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var product Product
		if err := rows.Scan(&product.ID, &product.Name, &product.UnitID, &product.UnitAbbr,
			&product.GroupID, &product.GroupName, &product.IsActive); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// ListProductGroups returns all purchasing categories.
func (r *Repository) ListProductGroups(ctx context.Context) ([]ProductGroup, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM product_groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []ProductGroup
	for rows.Next() {
		var group ProductGroup
		if err := rows.Scan(&group.ID, &group.Name); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// ListBranches returns all branches.
func (r *Repository) ListBranches(ctx context.Context) ([]Branch, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM branches ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		var branch Branch
		if err := rows.Scan(&branch.ID, &branch.Name); err != nil {
			return nil, err
		}
		branches = append(branches, branch)
	}
	return branches, rows.Err()
}

// ListDepartments returns all departments.
func (r *Repository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM departments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		var department Department
		if err := rows.Scan(&department.ID, &department.Name); err != nil {
			return nil, err
		}
		departments = append(departments, department)
	}
	return departments, rows.Err()
}

// PriceSnapshot returns each product's most recent purchased price,
// looking across past order days. Products never purchased are simply
// absent from the snapshot.
func (r *Repository) PriceSnapshot(ctx context.Context, productIDs []int64) (aggregation.PriceLookup, error) {
	snapshot := make(PriceSnapshot, len(productIDs))
	if len(productIDs) == 0 {
		return snapshot, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (oi.product_id) oi.product_id, oi.actual_price
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE oi.product_id = ANY($1) AND oi.is_purchased AND oi.actual_price IS NOT NULL
		 ORDER BY oi.product_id, o.order_date DESC, oi.id DESC`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var price float64
		if err := rows.Scan(&productID, &price); err != nil {
			return nil, err
		}
		snapshot[productID] = price
	}
	return snapshot, rows.Err()
}
