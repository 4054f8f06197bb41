package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/data/entity"
	"storefront/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Product sort keys accepted by FindAll.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNameAsc   = "name-asc"
	SortNameDesc  = "name-desc"
	SortPopular   = "popular"
)

var productOrderBy = map[string]string{
	SortNewest:    "created_at DESC",
	SortPriceAsc:  "price ASC",
	SortPriceDesc: "price DESC",
	SortNameAsc:   "name ASC",
	SortNameDesc:  "name DESC",
	SortPopular:   "rating DESC, created_at DESC",
}

type ProductFilter struct {
	Keyword   string
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	SortBy    string
}

type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*entity.Product, error)
	FindAll(ctx context.Context, filter ProductFilter, offset, limit int) ([]*entity.Product, error)
	CountAll(ctx context.Context, filter ProductFilter) (int64, error)
	Update(ctx context.Context, product *entity.Product) error
	Delete(ctx context.Context, id uuid.UUID) error

	// DecrementStock subtracts quantity only while enough stock remains.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type productRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewProductRepository(db database.PgxIface, log *zap.Logger) ProductRepository {
	return &productRepository{
		db:  db,
		log: log.With(zap.String("repository", "product")),
	}
}

const productColumns = `id, name, description, price, image, category, stock,
		       rating, created_at, updated_at, deleted_at`

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var product entity.Product
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Image,
		&product.Category,
		&product.Stock,
		&product.Rating,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) Create(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (id, name, description, price, image, category,
		                      stock, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := database.Conn(ctx, r.db).Exec(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Image,
		product.Category,
		product.Stock,
		product.Rating,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create product",
			zap.Error(err),
			zap.String("name", product.Name),
		)
		return fmt.Errorf("create product %s: %w", product.Name, err)
	}

	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`

	product, err := scanProduct(database.Conn(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find product by ID",
			zap.Error(err),
			zap.String("product_id", id.String()),
		)
		return nil, fmt.Errorf("find product by ID %s: %w", id.String(), err)
	}

	return product, nil
}

// FindByIDs returns the live products among ids, keyed by ID. Missing or
// deleted products are simply absent from the map.
func (r *productRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*entity.Product, error) {
	products := make(map[uuid.UUID]*entity.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1) AND deleted_at IS NULL
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, ids)
	if err != nil {
		r.log.Error("Failed to find products by IDs",
			zap.Error(err),
			zap.Int("count", len(ids)),
		)
		return nil, fmt.Errorf("find products by IDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			r.log.Error("Failed to scan product row", zap.Error(err))
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

// buildProductWhere appends the filter conditions to qb, numbering
// placeholders after the args already collected.
func buildProductWhere(qb *strings.Builder, args *[]any, filter ProductFilter) {
	argCount := len(*args) + 1

	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		fmt.Fprintf(qb, " AND name ILIKE $%d", argCount)
		*args = append(*args, "%"+escapeLike(keyword)+"%")
		argCount++
	}

	if filter.Category != "" {
		fmt.Fprintf(qb, " AND category = $%d", argCount)
		*args = append(*args, filter.Category)
		argCount++
	}

	if filter.MinPrice != nil {
		fmt.Fprintf(qb, " AND price >= $%d", argCount)
		*args = append(*args, *filter.MinPrice)
		argCount++
	}

	if filter.MaxPrice != nil {
		fmt.Fprintf(qb, " AND price <= $%d", argCount)
		*args = append(*args, *filter.MaxPrice)
		argCount++
	}

	if filter.MinRating != nil && *filter.MinRating > 0 {
		fmt.Fprintf(qb, " AND rating >= $%d", argCount)
		*args = append(*args, *filter.MinRating)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *productRepository) FindAll(ctx context.Context, filter ProductFilter, offset, limit int) ([]*entity.Product, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + productColumns + `
		FROM products
		WHERE deleted_at IS NULL`)

	args := []any{}
	buildProductWhere(&queryBuilder, &args, filter)

	orderBy, ok := productOrderBy[filter.SortBy]
	if !ok {
		orderBy = productOrderBy[SortNewest]
	}
	argCount := len(args) + 1
	fmt.Fprintf(&queryBuilder, " ORDER BY %s, id LIMIT $%d OFFSET $%d", orderBy, argCount, argCount+1)
	args = append(args, limit, offset)

	rows, err := database.Conn(ctx, r.db).Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		r.log.Error("Failed to find all products",
			zap.Error(err),
			zap.Int("offset", offset),
			zap.Int("limit", limit),
			zap.String("sort_by", filter.SortBy),
		)
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	var products []*entity.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			r.log.Error("Failed to scan product row", zap.Error(err))
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		r.log.Error("Error iterating product rows", zap.Error(err))
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (r *productRepository) CountAll(ctx context.Context, filter ProductFilter) (int64, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT COUNT(*) FROM products WHERE deleted_at IS NULL`)

	args := []any{}
	buildProductWhere(&queryBuilder, &args, filter)

	var count int64
	err := database.Conn(ctx, r.db).QueryRow(ctx, queryBuilder.String(), args...).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count products", zap.Error(err))
		return 0, fmt.Errorf("count products: %w", err)
	}

	return count, nil
}

func (r *productRepository) Update(ctx context.Context, product *entity.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, image = $5,
		    category = $6, stock = $7, rating = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Image,
		product.Category,
		product.Stock,
		product.Rating,
		product.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update product",
			zap.Error(err),
			zap.String("product_id", product.ID.String()),
		)
		return fmt.Errorf("update product %s: %w", product.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update product %s: %w", product.ID.String(), ErrNotFound)
	}

	return nil
}

// Delete soft-deletes the product so existing order items keep their reference.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE products
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to delete product",
			zap.Error(err),
			zap.String("product_id", id.String()),
		)
		return fmt.Errorf("delete product %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete product %s: %w", id.String(), ErrNotFound)
	}

	return nil
}

func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND stock >= $2
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, id, quantity)
	if database.IsCheckViolation(err) {
		return ErrInsufficientStock
	}
	if err != nil {
		r.log.Error("Failed to decrement stock",
			zap.Error(err),
			zap.String("product_id", id.String()),
			zap.Int("quantity", quantity),
		)
		return fmt.Errorf("decrement stock %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return ErrInsufficientStock
	}

	return nil
}
