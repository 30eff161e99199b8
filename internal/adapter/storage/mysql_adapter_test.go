package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/mallcart?parseTime=true&loc=UTC&clientFoundRows=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := NewMySQLAdapter(db).Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedVariant inserts a published product with the given number of variants and
// returns the variant ids, the first one primary.
func seedVariant(t *testing.T, db *sql.DB, tenantID string, count int) []string {
	t.Helper()
	ctx := context.Background()

	productID := uuid.NewString()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO mall_product_product (id, organization_id, is_published) VALUES (?, ?, 1)`,
		productID, tenantID,
	); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	ids := make([]string, count)
	for i := range ids {
		ids[i] = uuid.NewString()
		if _, err := db.ExecContext(ctx, `
			INSERT INTO mall_product_variant (id, product_id, is_primary, is_published, price, price_sale, currency)
			VALUES (?, ?, ?, 1, 100.00, 80.00, 'USD')`,
			ids[i], productID, i == 0,
		); err != nil {
			t.Fatalf("seed variant: %v", err)
		}
	}
	return ids
}

func TestIsDuplicateKey(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry"})
	if !isDuplicateKey(dup) {
		t.Error("expected wrapped 1062 to be a duplicate key")
	}
	if isDuplicateKey(&mysql.MySQLError{Number: 1213}) {
		t.Error("expected deadlock not to be a duplicate key")
	}
	if isDuplicateKey(errors.New("boom")) {
		t.Error("expected plain error not to be a duplicate key")
	}
}

func TestGetOrCreate_Concurrent(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	tenantID := uuid.NewString()

	var (
		mu      sync.Mutex
		ids     = make(map[string]struct{})
		created int
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			ok, cart, err := adapter.GetOrCreate(ctx, tenantID, "customer-1", domain.DefaultCartSlug)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			ids[cart.ID] = struct{}{}
			if ok {
				created++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if len(ids) != 1 || created != 1 {
		t.Errorf("expected one cart created once, got %d carts, %d creations", len(ids), created)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	tenantID := uuid.NewString()
	variants := seedVariant(t, db, tenantID, 2)

	_, cart, err := adapter.GetOrCreate(ctx, tenantID, "customer-1", domain.DefaultCartSlug)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	boom := errors.New("boom")
	err = adapter.WithinTx(ctx, cart.ID, func(ctx context.Context, lines port.LineStore) error {
		if err := lines.CreateLine(ctx, domain.CartLine{CartID: cart.ID, VariantID: variants[0], Quantity: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	lines, err := adapter.ListLines(ctx, cart.ID)
	if err != nil {
		t.Fatalf("ListLines failed: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected rollback, got %d lines", len(lines))
	}
}

func TestLineStore_Lifecycle(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	tenantID := uuid.NewString()
	variants := seedVariant(t, db, tenantID, 2)

	_, cart, err := adapter.GetOrCreate(ctx, tenantID, "customer-1", domain.DefaultCartSlug)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	err = adapter.WithinTx(ctx, cart.ID, func(ctx context.Context, lines port.LineStore) error {
		if err := lines.CreateLine(ctx, domain.CartLine{CartID: cart.ID, VariantID: variants[1], Quantity: 2}); err != nil {
			return err
		}
		// same variant again hits the live-row unique key
		err := lines.CreateLine(ctx, domain.CartLine{CartID: cart.ID, VariantID: variants[1], Quantity: 1})
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}

		line, err := lines.FindLine(ctx, cart.ID, variants[1])
		if err != nil || line == nil {
			return fmt.Errorf("find line: %v", err)
		}
		if err := lines.UpdateLineQuantity(ctx, line.ID, 5); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	lines, _ := adapter.ListLines(ctx, cart.ID)
	if len(lines) != 1 || lines[0].Quantity != 5 {
		t.Fatalf("expected one line with quantity 5, got %+v", lines)
	}

	// a deleted line frees the unique key for a new one
	err = adapter.WithinTx(ctx, cart.ID, func(ctx context.Context, ls port.LineStore) error {
		if err := ls.DeleteLine(ctx, lines[0].ID); err != nil {
			return err
		}
		return ls.CreateLine(ctx, domain.CartLine{CartID: cart.ID, VariantID: variants[1], Quantity: 1})
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	lines, _ = adapter.ListLines(ctx, cart.ID)
	if len(lines) != 1 || lines[0].Quantity != 1 {
		t.Errorf("expected the recreated line, got %+v", lines)
	}
}

func TestDeleteCart_Cascades(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	tenantID := uuid.NewString()
	variants := seedVariant(t, db, tenantID, 1)

	_, cart, err := adapter.GetOrCreate(ctx, tenantID, "customer-1", domain.DefaultCartSlug)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	err = adapter.WithinTx(ctx, cart.ID, func(ctx context.Context, lines port.LineStore) error {
		return lines.CreateLine(ctx, domain.CartLine{CartID: cart.ID, VariantID: variants[0], Quantity: 1})
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	if err := adapter.DeleteCart(ctx, tenantID, "customer-2", cart.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another customer, got %v", err)
	}
	if err := adapter.DeleteCart(ctx, tenantID, "customer-1", cart.ID); err != nil {
		t.Fatalf("DeleteCart failed: %v", err)
	}

	lines, _ := adapter.ListLines(ctx, cart.ID)
	if len(lines) != 0 {
		t.Errorf("expected lines to be tombstoned, got %d", len(lines))
	}

	err = adapter.WithinTx(ctx, cart.ID, func(ctx context.Context, lines port.LineStore) error { return nil })
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a deleted cart, got %v", err)
	}

	created, fresh, err := adapter.GetOrCreate(ctx, tenantID, "customer-1", domain.DefaultCartSlug)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !created || fresh.ID == cart.ID {
		t.Error("expected a new cart after delete")
	}
}

func TestCatalog_Visibility(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	tenantID := uuid.NewString()
	variants := seedVariant(t, db, tenantID, 3)
	now := time.Now().UTC()

	v, err := adapter.GetPublishedVariant(ctx, variants[0], now)
	if err != nil || v == nil {
		t.Fatalf("expected published variant, got %v %v", v, err)
	}
	if !v.IsPrimary || !v.PriceSale.Valid || v.PriceSale.Decimal.String() != "80" {
		t.Errorf("unexpected variant %+v", v)
	}

	n, err := adapter.CountVariantsForProduct(ctx, v.ProductID)
	if err != nil || n != 3 {
		t.Errorf("expected 3 variants, got %d %v", n, err)
	}

	tomorrow := now.Add(24 * time.Hour)
	db.ExecContext(ctx, `UPDATE mall_product_variant SET published_at = ? WHERE id = ?`, tomorrow, variants[1])
	db.ExecContext(ctx, `UPDATE mall_product_variant SET is_published = 0 WHERE id = ?`, variants[2])

	for _, id := range variants[1:] {
		v, err := adapter.GetPublishedVariant(ctx, id, now)
		if err != nil {
			t.Fatalf("GetPublishedVariant failed: %v", err)
		}
		if v != nil {
			t.Errorf("expected %s to be hidden", id)
		}
	}

	all, err := adapter.GetVariants(ctx, append(variants, uuid.NewString()))
	if err != nil {
		t.Fatalf("GetVariants failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected hidden variants to be loaded too, got %d", len(all))
	}
}

func TestGetVisibleShipment(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	tenantID := uuid.NewString()
	shipmentID := uuid.NewString()

	if _, err := db.ExecContext(ctx, `
		INSERT INTO mall_shipment_shipment (id, organization_id, is_published, price, currency)
		VALUES (?, ?, 1, 60.00, 'TWD')`, shipmentID, tenantID,
	); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	s, err := adapter.GetVisibleShipment(ctx, tenantID, shipmentID, time.Now())
	if err != nil || s == nil {
		t.Fatalf("expected shipment, got %v %v", s, err)
	}
	if s.Price.String() != "60" || s.Currency != "TWD" {
		t.Errorf("unexpected shipment %+v", s)
	}

	s, err = adapter.GetVisibleShipment(ctx, uuid.NewString(), shipmentID, time.Now())
	if err != nil {
		t.Fatalf("GetVisibleShipment failed: %v", err)
	}
	if s != nil {
		t.Error("expected shipment of another tenant to be hidden")
	}
}
