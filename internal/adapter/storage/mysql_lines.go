package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

const lineColumns = `id, cart_id, variant_id, quantity, deleted_at, created_at, updated_at`

func scanLine(row rowScanner) (*domain.CartLine, error) {
	var (
		l         domain.CartLine
		deletedAt sql.NullTime
	)
	if err := row.Scan(&l.ID, &l.CartID, &l.VariantID, &l.Quantity, &deletedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.DeletedAt = nullTimePtr(deletedAt)
	return &l, nil
}

// mysqlLineTx writes lines inside the transaction opened by WithinTx.
type mysqlLineTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *mysqlLineTx) FindLine(ctx context.Context, cartID, variantID string) (*domain.CartLine, error) {
	line, err := scanLine(t.tx.QueryRowContext(ctx, `
		SELECT `+lineColumns+`
		FROM mall_cart_cartline
		WHERE cart_id = ? AND variant_id = ? AND deleted_at IS NULL`,
		cartID, variantID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query line: %w", err)
	}
	return line, nil
}

func (t *mysqlLineTx) CreateLine(ctx context.Context, line domain.CartLine) error {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	now := t.now()

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO mall_cart_cartline (id, cart_id, variant_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		line.ID, line.CartID, line.VariantID, line.Quantity, now, now,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: variant %s already in cart %s", domain.ErrConflict, line.VariantID, line.CartID)
	}
	if err != nil {
		return fmt.Errorf("insert line: %w", err)
	}
	return nil
}

func (t *mysqlLineTx) UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE mall_cart_cartline SET quantity = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		quantity, t.now(), lineID,
	)
	if err != nil {
		return fmt.Errorf("update line: %w", err)
	}
	return requireRow(result, lineID)
}

func (t *mysqlLineTx) DeleteLine(ctx context.Context, lineID string) error {
	now := t.now()
	result, err := t.tx.ExecContext(ctx, `
		UPDATE mall_cart_cartline SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		now, now, lineID,
	)
	if err != nil {
		return fmt.Errorf("delete line: %w", err)
	}
	return requireRow(result, lineID)
}

func requireRow(result sql.Result, lineID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: line %s", domain.ErrNotFound, lineID)
	}
	return nil
}
