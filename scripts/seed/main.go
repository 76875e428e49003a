package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/platform/db"
	"github.com/odyssey-erp/ppestock/internal/products"
)

func main() {
	path := getenv("STORE_PATH", "data/ppestock.db")
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	handle, err := db.Open(ctx, path, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer handle.Close()

	service := products.NewService(products.NewRepository(handle), logger)
	existing, err := service.ListProducts(ctx, calendar.Today())
	if err != nil {
		log.Fatalf("list products: %v", err)
	}
	if len(existing) > 0 && os.Getenv("SEED_FORCE") != "1" {
		fmt.Printf("→ Store already holds %d products, skipping (SEED_FORCE=1 to add anyway)\n", len(existing))
		return
	}

	fmt.Println("→ Seeding PPE products...")
	count, err := seedProducts(ctx, service, calendar.Today())
	if err != nil {
		log.Fatalf("seed products: %v", err)
	}
	fmt.Printf("✓ Seeded %d products into %s at %s\n", count, handle.Path(), time.Now().Format(time.RFC3339))
}

// seedProducts adds one product per expiry status relative to today.
func seedProducts(ctx context.Context, service *products.Service, today calendar.Date) (int, error) {
	shelf := func(days int) *int { return &days }
	display := func(offset int) string { return today.AddDays(offset).Display() }

	inputs := []products.ProductInput{
		{Name: "Luva de Vaqueta", Batch: "LV-2401", ApprovalCode: "40377", Quantity: 120, PurchaseDate: display(-60), ExpiryDate: display(400)},
		{Name: "Capacete de Segurança", Batch: "CP-1187", ApprovalCode: "31469", Quantity: 35, PurchaseDate: display(-200), ExpiryDate: display(12)},
		{Name: "Protetor Auricular Plug", Batch: "PA-0932", ApprovalCode: "5745", Quantity: 500, PurchaseDate: display(-400), ExpiryDate: display(-3)},
		{Name: "Máscara PFF2", Batch: "PFF-7781", ApprovalCode: "38503", Quantity: 250, ManufactureDate: display(-700), ShelfLifeDays: shelf(720)},
		{Name: "Óculos de Proteção", Batch: "OC-5520", ApprovalCode: "11268", Quantity: 60, PurchaseDate: display(-10)},
		{Name: "Botina de Couro", Batch: "BT-3310", ApprovalCode: "42011", Quantity: 18, ManufactureDate: display(-30), ShelfLifeDays: shelf(1800)},
		{Name: "Cinto Paraquedista", Batch: "CI-0456", ApprovalCode: "35529", Quantity: 8, PurchaseDate: display(-340), ExpiryDate: display(30)},
	}

	var errs []error
	count := 0
	for _, in := range inputs {
		id, err := service.AddProduct(ctx, in)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", in.Name, err))
			continue
		}
		count++
		fmt.Println("  + " + strconv.FormatInt(id, 10) + " " + in.Name)
	}
	return count, errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
