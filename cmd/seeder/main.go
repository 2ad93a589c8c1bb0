package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/piaxis/inventory-sync/internal/adapters/db"
)

// catalogColumns is the expected sheet layout, in order
var catalogColumns = []string{
	"sku", "barcode", "name", "description", "unit_price", "quantity", "location_id",
}

// CatalogProduct is one row of a seed catalog
type CatalogProduct struct {
	ProductID   uuid.UUID
	StoreID     string
	SKU         string
	Barcode     string
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int
	LocationID  string
}

// CatalogLoader reads product catalogs from Excel workbooks and writes
// them into the products table.
type CatalogLoader struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewCatalogLoader(db *pgxpool.Pool, logger *slog.Logger) *CatalogLoader {
	return &CatalogLoader{
		db:     db,
		logger: logger,
	}
}

// LoadCatalog reads every data row from the first sheet of the workbook.
// The sheet name doubles as the store identifier unless one is forced
// via the -store flag.
func (l *CatalogLoader) LoadCatalog(path, storeID string) ([]CatalogProduct, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := wb.Sheets[0]

	if storeID == "" {
		storeID = strings.TrimSpace(sheet.Name)
	}
	if storeID == "" {
		return nil, fmt.Errorf("no store identifier: sheet is unnamed and -store not given")
	}

	var products []CatalogProduct
	var skipped int

	err = sheet.ForEachRow(func(row *xlsx.Row) error {
		values := make([]string, len(catalogColumns))
		for i := range catalogColumns {
			if cell := row.GetCell(i); cell != nil {
				values[i] = strings.TrimSpace(cell.Value)
			}
		}

		// Header row or blank line
		if values[0] == "" || strings.EqualFold(values[0], "sku") {
			return nil
		}

		product, err := parseCatalogRow(values, storeID)
		if err != nil {
			l.logger.Warn("skipping malformed catalog row",
				slog.String("sku", values[0]),
				slog.String("error", err.Error()))
			skipped++
			return nil
		}

		products = append(products, product)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	if skipped > 0 {
		l.logger.Warn("catalog rows skipped", slog.Int("count", skipped))
	}

	return products, nil
}

func parseCatalogRow(values []string, storeID string) (CatalogProduct, error) {
	product := CatalogProduct{
		ProductID:   uuid.New(),
		StoreID:     storeID,
		SKU:         values[0],
		Barcode:     values[1],
		Name:        values[2],
		Description: values[3],
		LocationID:  values[6],
	}

	if product.Name == "" {
		return product, fmt.Errorf("name is required")
	}

	if values[4] != "" {
		price, err := decimal.NewFromString(values[4])
		if err != nil {
			return product, fmt.Errorf("invalid unit_price %q: %w", values[4], err)
		}
		if price.IsNegative() {
			return product, fmt.Errorf("unit_price cannot be negative")
		}
		product.UnitPrice = price
	}

	if values[5] != "" {
		qty, err := strconv.Atoi(values[5])
		if err != nil {
			return product, fmt.Errorf("invalid quantity %q: %w", values[5], err)
		}
		if qty < 0 {
			return product, fmt.Errorf("quantity cannot be negative")
		}
		product.Quantity = qty
	}

	return product, nil
}

// SaveProducts upserts the catalog in one batch. An existing
// (store_id, sku) row is refreshed in place rather than duplicated.
func (l *CatalogLoader) SaveProducts(ctx context.Context, products []CatalogProduct) error {
	batch := &pgx.Batch{}

	query := `
		INSERT INTO products (
			product_id, store_id, sku, barcode, name, description,
			unit_price, quantity, location_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (store_id, sku) WHERE deleted_at IS NULL
		DO UPDATE SET
			barcode = EXCLUDED.barcode,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			unit_price = EXCLUDED.unit_price,
			quantity = EXCLUDED.quantity,
			location_id = EXCLUDED.location_id,
			updated_at = now()
	`

	for _, p := range products {
		batch.Queue(query,
			p.ProductID, p.StoreID, p.SKU, nullIfEmpty(p.Barcode), p.Name,
			nullIfEmpty(p.Description), p.UnitPrice, p.Quantity,
			nullIfEmpty(p.LocationID))
	}

	results := l.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range products {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save product %s: %w", products[i].SKU, err)
		}
	}

	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// SeederState tracks which catalogs have already been loaded
type SeederState struct {
	ProcessedCatalogs []string  `json:"processed_catalogs"`
	ProcessedCount    int       `json:"processed_count"`
	LastUpdate        time.Time `json:"last_update"`
}

func (s *SeederState) contains(name string) bool {
	for _, c := range s.ProcessedCatalogs {
		if c == name {
			return true
		}
	}
	return false
}

func main() {
	// Parse flags
	var (
		catalogsDir   = flag.String("catalogs", "./catalogs", "Directory containing Excel product catalogs")
		storeID       = flag.String("store", "", "Store identifier (defaults to the sheet name)")
		stateFile     = flag.String("state", "./.seed_state.json", "State file for tracking progress")
		migrationsDir = flag.String("migrations", "./migrations", "Directory containing SQL migrations")
		logLevel      = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun        = flag.Bool("dry-run", false, "Preview changes without modifying database")
		force         = flag.Bool("force", false, "Reprocess all catalogs")
		skipMigrate   = flag.Bool("skip-migrate", false, "Skip running migrations before seeding")
	)
	flag.Parse()

	// Setup logging
	var slogLevel slog.Level
	switch *logLevel {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	// Database connection
	dbURL := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("DB_USER", "piaxis"),
		getEnv("DB_PASSWORD", "piaxis_dev_2026"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "piaxis_inventory"),
		getEnv("DB_SSL_MODE", "disable"),
	)

	ctx := context.Background()

	var pool *pgxpool.Pool
	var err error

	if !*dryRun {
		pool, err = pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Error("Failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		if !*skipMigrate {
			migrationConfig := &db.MigrationConfig{
				DatabaseURL: dbURL,
				SourcePath:  *migrationsDir,
				TableName:   "schema_migrations",
				SchemaName:  "public",
			}
			if err := db.RunMigrationsWithRetry(ctx, migrationConfig, logger, 3); err != nil {
				logger.Error("Failed to run migrations", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}
	}

	loader := NewCatalogLoader(pool, logger)

	// Load state
	var state SeederState
	if !*force {
		if stateData, err := os.ReadFile(*stateFile); err == nil {
			json.Unmarshal(stateData, &state)
		}
	}

	// Process catalogs
	catalogFiles, err := filepath.Glob(filepath.Join(*catalogsDir, "*.xlsx"))
	if err != nil {
		logger.Error("Failed to find catalog files", slog.String("error", err.Error()))
		os.Exit(1)
	}

	totalProcessed := 0
	totalProducts := 0
	failedCatalogs := []string{}
	successDetails := map[string]int{}

	for i, catalogFile := range catalogFiles {
		catalogName := strings.TrimSuffix(filepath.Base(catalogFile), ".xlsx")

		// Progress indicator
		fmt.Printf("PROGRESS: Processing %d/%d: %s\n", i+1, len(catalogFiles), catalogName)

		// Check if already processed
		if !*force && state.contains(catalogName) {
			logger.Info("Skipping already processed catalog", slog.String("catalog", catalogName))
			continue
		}

		// Extract products
		products, err := loader.LoadCatalog(catalogFile, *storeID)
		if err != nil {
			logger.Error("Failed to load catalog",
				slog.String("catalog", catalogName),
				slog.String("error", err.Error()))
			failedCatalogs = append(failedCatalogs, catalogName)
			fmt.Printf("ERROR: Failed to process catalog:%s - %v\n", catalogName, err)
			continue
		}

		if len(products) == 0 {
			logger.Warn("No products extracted",
				slog.String("catalog", catalogName))
			fmt.Printf("WARNING: No products found in catalog:%s\n", catalogName)
			failedCatalogs = append(failedCatalogs, fmt.Sprintf("%s (0 products)", catalogName))
			continue
		}

		// Save to database
		if !*dryRun {
			if err := loader.SaveProducts(ctx, products); err != nil {
				logger.Error("Failed to save products",
					slog.String("catalog", catalogName),
					slog.String("error", err.Error()))
				failedCatalogs = append(failedCatalogs, catalogName)
				fmt.Printf("ERROR: Failed to save catalog:%s - %v\n", catalogName, err)
				continue
			}
		}

		fmt.Printf("SUCCESS: Processed catalog:%s - %d products\n", catalogName, len(products))
		successDetails[catalogName] = len(products)

		totalProcessed++
		totalProducts += len(products)

		// Update state
		state.ProcessedCatalogs = append(state.ProcessedCatalogs, catalogName)
		state.ProcessedCount = len(state.ProcessedCatalogs)
		state.LastUpdate = time.Now()

		// Save state periodically
		if !*dryRun && i%10 == 0 {
			stateData, _ := json.MarshalIndent(state, "", "  ")
			os.WriteFile(*stateFile, stateData, 0644)
		}
	}

	// Save final state
	if !*dryRun {
		stateData, _ := json.MarshalIndent(state, "", "  ")
		os.WriteFile(*stateFile, stateData, 0644)
	}

	// Summary
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SEEDING OPERATION SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total Catalogs Processed: %d\n", totalProcessed)
	fmt.Printf("Total Products Loaded: %d\n", totalProducts)
	if totalProcessed > 0 {
		fmt.Printf("Average Products per Catalog: %.1f\n", float64(totalProducts)/float64(totalProcessed))
	}

	// Show successful loads
	if len(successDetails) > 0 {
		fmt.Printf("\nSuccessfully Processed (%d catalogs):\n", len(successDetails))
		for cat, count := range successDetails {
			fmt.Printf("  - %s: %d products\n", cat, count)
		}
	}

	if len(failedCatalogs) > 0 {
		fmt.Printf("\nFailed/Empty Catalogs (%d):\n", len(failedCatalogs))
		for _, cat := range failedCatalogs {
			fmt.Printf("  - %s\n", cat)
		}
	}

	logger.Info("Seed operation completed",
		slog.Int("catalogs_processed", totalProcessed),
		slog.Int("products_created", totalProducts),
		slog.Int("failed_catalogs", len(failedCatalogs)))

	if *dryRun {
		fmt.Println("\n[DRY RUN] No changes were made to the database")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
