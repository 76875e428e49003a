package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/platform/db"
	"github.com/odyssey-erp/ppestock/internal/shared"
)

// Repository persists products in the SQLite store. It is the only component
// that assigns product ids.
type Repository struct {
	handle *db.Handle
}

// NewRepository constructs Repository.
func NewRepository(handle *db.Handle) *Repository {
	return &Repository{handle: handle}
}

const productColumns = `id, name, batch, approval_code, quantity, purchase_date, manufacture_date, expiry_date, shelf_life_days`

// Create inserts a new product and returns its id.
func (r *Repository) Create(ctx context.Context, f Fields) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.handle.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO products (name, batch, approval_code, quantity, purchase_date, manufacture_date, expiry_date, shelf_life_days)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, writeArgs(f)...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, shared.NewStorageError("products: insert", err)
	}
	return id, nil
}

// Update overwrites every mutable field of product id.
func (r *Repository) Update(ctx context.Context, id int64, f Fields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	err := r.handle.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		args := append(writeArgs(f), id)
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET name = ?, batch = ?, approval_code = ?, quantity = ?,
			    purchase_date = ?, manufacture_date = ?, expiry_date = ?, shelf_life_days = ?
			WHERE id = ?`, args...)
		if err != nil {
			return err
		}
		return requireAffected(res, id)
	})
	return classify("products: update", err)
}

// Get loads a single product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.handle.View(ctx, func(ctx context.Context, conn *sql.DB) error {
		row := conn.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
		var err error
		p, err = scanProduct(row)
		if errors.Is(err, sql.ErrNoRows) {
			return shared.NewNotFoundError("product", id)
		}
		return err
	})
	if err != nil {
		return Product{}, classify("products: get", err)
	}
	return p, nil
}

// List returns every product in insertion order.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	var items []Product
	err := r.handle.View(ctx, func(ctx context.Context, conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			items = append(items, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, shared.NewStorageError("products: list", err)
	}
	return items, nil
}

// Delete removes product id. Deleting a missing id fails with NotFoundError.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	err := r.handle.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(res, id)
	})
	return classify("products: delete", err)
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return shared.NewNotFoundError("product", id)
	}
	return nil
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrValidation) {
		return err
	}
	return shared.NewStorageError(op, err)
}

func writeArgs(f Fields) []any {
	return []any{
		f.Name,
		f.Batch,
		nullInt64(f.ApprovalCode),
		f.Quantity,
		nullDate(f.PurchaseDate),
		nullDate(f.ManufactureDate),
		nullDate(f.ExpiryDate),
		nullInt(f.ShelfLifeDays),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p                                Product
		approval, shelfLife              sql.NullInt64
		purchase, manufacture, expiresAt sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Batch, &approval, &p.Quantity, &purchase, &manufacture, &expiresAt, &shelfLife); err != nil {
		return Product{}, err
	}
	if approval.Valid {
		code := approval.Int64
		p.ApprovalCode = &code
	}
	if shelfLife.Valid {
		days := int(shelfLife.Int64)
		p.ShelfLifeDays = &days
	}
	var err error
	if p.PurchaseDate, err = decodeDate("purchase_date", purchase); err != nil {
		return Product{}, err
	}
	if p.ManufactureDate, err = decodeDate("manufacture_date", manufacture); err != nil {
		return Product{}, err
	}
	if p.ExpiryDate, err = decodeDate("expiry_date", expiresAt); err != nil {
		return Product{}, err
	}
	return p, nil
}

func decodeDate(column string, v sql.NullString) (*calendar.Date, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := calendar.ParseISO(v.String)
	if err != nil {
		return nil, fmt.Errorf("products: decode %s: %w", column, err)
	}
	return &d, nil
}

func nullDate(d *calendar.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
