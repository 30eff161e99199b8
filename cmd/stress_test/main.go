package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/mall-cart/internal/adapter/relayid"
	"github.com/rl1809/mall-cart/internal/adapter/storage"
	"github.com/rl1809/mall-cart/internal/adapter/storage/memory"
	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/core/service"
	"github.com/rl1809/mall-cart/internal/port"
)

const (
	customers           = 20
	requestsPerCustomer = 10
	variantCount        = 5
)

type backend interface {
	port.CartRepository
	port.CatalogReader
}

func main() {
	driver := flag.String("driver", "memory", "storage driver: memory or mysql")
	dsn := flag.String("dsn", "root:root@tcp(localhost:3306)/mallcart?parseTime=true&loc=UTC&clientFoundRows=true", "MySQL DSN")
	flag.Parse()

	ctx := context.Background()
	tenantID := uuid.NewString()

	var store backend
	var variants []string
	switch *driver {
	case "memory":
		mem := memory.NewStore()
		variants = seedMemory(mem, tenantID)
		store = mem
	case "mysql":
		db, err := sql.Open("mysql", *dsn)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		defer db.Close()
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		variants, err = seedMySQL(ctx, db, tenantID)
		if err != nil {
			log.Fatalf("failed to seed catalog: %v", err)
		}
		store = adapter
	default:
		log.Fatalf("unknown driver %q", *driver)
	}

	codec := relayid.NewCodec()
	carts := service.NewCartService(store, codec)
	mutator := service.NewLineMutator(store, store, codec)

	tokens := make([]string, len(variants))
	quantities := make([]int, len(variants))
	for i, v := range variants {
		tokens[i] = codec.Encode(port.TypeVariant, v)
		quantities[i] = 1
	}

	var (
		created  atomic.Int32
		done     atomic.Int32
		inUse    atomic.Int32
		failures atomic.Int32
		mu       sync.Mutex
		cartIDs  = make(map[string]map[string]struct{})
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < customers; c++ {
		scope := domain.Scope{TenantID: tenantID, CustomerID: fmt.Sprintf("customer-%d", c)}
		for r := 0; r < requestsPerCustomer; r++ {
			g.Go(func() error {
				ok, cart, err := carts.CreateCart(gctx, scope, "")
				if err != nil {
					failures.Add(1)
					return nil
				}
				if ok {
					created.Add(1)
				}
				mu.Lock()
				if cartIDs[scope.CustomerID] == nil {
					cartIDs[scope.CustomerID] = make(map[string]struct{})
				}
				cartIDs[scope.CustomerID][cart.ID] = struct{}{}
				mu.Unlock()

				res, err := mutator.CreateBatch(gctx, scope, service.BatchInput{
					CartID:     carts.CartToken(*cart),
					VariantIDs: tokens,
					Quantities: quantities,
				})
				if err != nil {
					failures.Add(1)
					return nil
				}
				done.Add(int32(len(res.Warnings.Done)))
				inUse.Add(int32(len(res.Warnings.InUse)))
				return nil
			})
		}
	}
	g.Wait()
	elapsed := time.Since(start)

	total := customers * requestsPerCustomer
	// the primary of a multi-variant product is protected, the rest land once per cart
	wantDone := customers * (variantCount - 1)
	wantInUse := (total - customers) * (variantCount - 1)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Driver:           %s\n", *driver)
	fmt.Printf("Customers:        %d\n", customers)
	fmt.Printf("Total Requests:   %d\n", total)
	fmt.Printf("Carts Created:    %d\n", created.Load())
	fmt.Printf("Lines Done:       %d\n", done.Load())
	fmt.Printf("Lines In Use:     %d\n", inUse.Load())
	fmt.Printf("Failures:         %d\n", failures.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	duplicated := 0
	for _, ids := range cartIDs {
		if len(ids) != 1 {
			duplicated++
		}
	}
	if created.Load() == customers && duplicated == 0 {
		fmt.Printf("PASS: exactly one cart per customer\n")
	} else {
		fmt.Printf("FAIL: expected %d carts, got %d created, %d customers with several carts\n",
			customers, created.Load(), duplicated)
	}

	if int(done.Load()) == wantDone && int(inUse.Load()) == wantInUse && failures.Load() == 0 {
		fmt.Printf("PASS: each variant added once per cart\n")
	} else {
		fmt.Printf("FAIL: expected %d done/%d in use, got %d/%d with %d failures\n",
			wantDone, wantInUse, done.Load(), inUse.Load(), failures.Load())
	}
}

func seedMemory(store *memory.Store, tenantID string) []string {
	productID := uuid.NewString()
	store.PutProduct(domain.Product{ID: productID, TenantID: tenantID, IsPublished: true})

	ids := make([]string, variantCount)
	for i := range ids {
		ids[i] = uuid.NewString()
		store.PutVariant(domain.Variant{
			ID:          ids[i],
			ProductID:   productID,
			IsPrimary:   i == 0,
			IsPublished: true,
			Price:       decimal.NewNullDecimal(decimal.NewFromInt(100)),
			PriceSale:   decimal.NewNullDecimal(decimal.NewFromInt(80)),
			Currency:    "USD",
		})
	}
	return ids
}

func seedMySQL(ctx context.Context, db *sql.DB, tenantID string) ([]string, error) {
	productID := uuid.NewString()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO mall_product_product (id, organization_id, is_published) VALUES (?, ?, 1)`,
		productID, tenantID,
	); err != nil {
		return nil, err
	}

	ids := make([]string, variantCount)
	for i := range ids {
		ids[i] = uuid.NewString()
		if _, err := db.ExecContext(ctx, `
			INSERT INTO mall_product_variant (id, product_id, is_primary, is_published, price, price_sale, currency)
			VALUES (?, ?, ?, 1, 100, 80, 'USD')`,
			ids[i], productID, i == 0,
		); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
