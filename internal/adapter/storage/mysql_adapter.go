package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

const mysqlDuplicateEntry = 1062

//go:embed schema.sql
var schemaSQL string

type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

var (
	_ port.CartRepository = (*MySQLAdapter)(nil)
	_ port.CatalogReader  = (*MySQLAdapter)(nil)
	_ port.ShipmentReader = (*MySQLAdapter)(nil)
)

// Migrate creates the cart and catalog tables when they do not exist.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

type rowScanner interface {
	Scan(dest ...any) error
}

const cartColumns = `id, organization_id, customer_id, slug, sort_key, deleted_at, created_at, updated_at`

func scanCart(row rowScanner) (*domain.Cart, error) {
	var (
		c         domain.Cart
		sortKey   sql.NullInt64
		deletedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.CustomerID, &c.Slug, &sortKey, &deletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sortKey.Valid {
		k := int(sortKey.Int64)
		c.SortKey = &k
	}
	c.DeletedAt = nullTimePtr(deletedAt)
	return &c, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (m *MySQLAdapter) GetOrCreate(ctx context.Context, tenantID, customerID, slug string) (bool, *domain.Cart, error) {
	// a losing concurrent insert hits the unique key and reads the winner's row
	for attempt := 0; attempt < 3; attempt++ {
		cart, err := m.FindBySlug(ctx, tenantID, customerID, slug)
		if err != nil {
			return false, nil, err
		}
		if cart != nil {
			return false, cart, nil
		}

		now := m.now()
		cart = &domain.Cart{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			CustomerID: customerID,
			Slug:       slug,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		_, err = m.db.ExecContext(ctx, `
			INSERT INTO mall_cart_cart (id, organization_id, customer_id, slug, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			cart.ID, cart.TenantID, cart.CustomerID, cart.Slug, cart.CreatedAt, cart.UpdatedAt,
		)
		if err == nil {
			return true, cart, nil
		}
		if !isDuplicateKey(err) {
			return false, nil, fmt.Errorf("insert cart: %w", err)
		}
	}
	return false, nil, fmt.Errorf("insert cart: %w", domain.ErrConflict)
}

func (m *MySQLAdapter) FindByID(ctx context.Context, tenantID, customerID, id string) (*domain.Cart, error) {
	cart, err := scanCart(m.db.QueryRowContext(ctx, `
		SELECT `+cartColumns+`
		FROM mall_cart_cart
		WHERE id = ? AND organization_id = ? AND customer_id = ? AND deleted_at IS NULL`,
		id, tenantID, customerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	return cart, nil
}

func (m *MySQLAdapter) FindBySlug(ctx context.Context, tenantID, customerID, slug string) (*domain.Cart, error) {
	cart, err := scanCart(m.db.QueryRowContext(ctx, `
		SELECT `+cartColumns+`
		FROM mall_cart_cart
		WHERE organization_id = ? AND customer_id = ? AND slug = ? AND deleted_at IS NULL`,
		tenantID, customerID, slug,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart by slug: %w", err)
	}
	return cart, nil
}

func (m *MySQLAdapter) ListCarts(ctx context.Context, tenantID, customerID string) ([]domain.Cart, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+cartColumns+`
		FROM mall_cart_cart
		WHERE organization_id = ? AND customer_id = ? AND deleted_at IS NULL
		ORDER BY sort_key IS NULL, sort_key, created_at`,
		tenantID, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query carts: %w", err)
	}
	defer rows.Close()

	var carts []domain.Cart
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart: %w", err)
		}
		carts = append(carts, *c)
	}
	return carts, rows.Err()
}

func (m *MySQLAdapter) ListLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+lineColumns+`
		FROM mall_cart_cartline
		WHERE cart_id = ? AND deleted_at IS NULL
		ORDER BY updated_at, created_at`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

// WithinTx locks the cart row for the whole transaction, so concurrent batches on
// one cart run one after another.
func (m *MySQLAdapter) WithinTx(ctx context.Context, cartID string, fn func(ctx context.Context, lines port.LineStore) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM mall_cart_cart WHERE id = ? AND deleted_at IS NULL FOR UPDATE`, cartID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}

	if err := fn(ctx, &mysqlLineTx{tx: tx, now: m.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteCart(ctx context.Context, tenantID, customerID, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM mall_cart_cart
		WHERE id = ? AND organization_id = ? AND customer_id = ? AND deleted_at IS NULL
		FOR UPDATE`,
		id, tenantID, customerID,
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}

	now := m.now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE mall_cart_cartline SET deleted_at = ?, updated_at = ?
		WHERE cart_id = ? AND deleted_at IS NULL`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE mall_cart_cart SET deleted_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	return tx.Commit()
}
