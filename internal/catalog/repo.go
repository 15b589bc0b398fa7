package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, category_id, name, description, price, image_url, rating, reviews_count,
	badge, discount, in_stock, created_at, updated_at`

// ListProducts returns newest first.
func (r *Repo) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		where = append(where, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if f.InStockOnly {
		where = append(where, "in_stock")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		INSERT INTO products(id, category_id, name, description, price, image_url, rating, reviews_count, badge, discount, in_stock)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+productColumns,
		uuid.NewString(), in.CategoryID, in.Name, in.Description, in.Price, in.ImageURL, in.Rating,
		in.ReviewsCount, in.Badge, in.Discount, in.InStock))
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (r *Repo) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET category_id=$2, name=$3, description=$4, price=$5, image_url=$6, rating=$7,
		       reviews_count=$8, badge=$9, discount=$10, in_stock=$11, updated_at=now()
		WHERE id=$1
		RETURNING `+productColumns,
		id, in.CategoryID, in.Name, in.Description, in.Price, in.ImageURL, in.Rating,
		in.ReviewsCount, in.Badge, in.Discount, in.InStock))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) SetProductImage(ctx context.Context, id, url string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET image_url=$2, updated_at=now() WHERE id=$1`, id, url)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteProduct(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

const categoryColumns = `id, name, description, icon, color, bg_color, items_count, created_at, updated_at`

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	c, err := scanCategory(r.DB.QueryRow(ctx, `
		INSERT INTO categories(id, name, description, icon, color, bg_color, items_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+categoryColumns,
		uuid.NewString(), in.Name, in.Description, in.Icon, in.Color, in.BgColor, in.ItemsCount))
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *Repo) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	c, err := scanCategory(r.DB.QueryRow(ctx, `
		UPDATE categories SET name=$2, description=$3, icon=$4, color=$5, bg_color=$6, items_count=$7, updated_at=now()
		WHERE id=$1
		RETURNING `+categoryColumns,
		id, in.Name, in.Description, in.Icon, in.Color, in.BgColor, in.ItemsCount))
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

func (r *Repo) DeleteCategory(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := r.DB.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Repo) PutSetting(ctx context.Context, key, value string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO settings(key, value, updated_at) VALUES ($1,$2,now())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`, key, value)
	return err
}

func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.DB.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM products),
		       (SELECT COUNT(*) FROM categories),
		       (SELECT COUNT(*) FROM products WHERE in_stock)`).
		Scan(&s.Products, &s.Categories, &s.InStockProducts)
	return s, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Rating,
		&p.ReviewsCount, &p.Badge, &p.Discount, &p.InStock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &c.BgColor, &c.ItemsCount,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}
