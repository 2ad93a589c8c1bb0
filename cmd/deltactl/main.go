// cmd/deltactl/main.go
//
// deltactl submits inventory delta CSV files to the import API and
// reports applied/conflict counts, mirroring what the web importer does.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/importer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "import":
		runImport(os.Args[2:])
	case "template":
		runTemplate(os.Args[2:])
	case "products":
		runProducts(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: deltactl <command> [flags]

Commands:
  import    Submit a delta CSV file to a store
  template  Write the delta CSV template
  products  List current products for a store`)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	var (
		server  = fs.String("server", getEnv("PIAXIS_SERVER", "http://localhost:8080"), "API server base URL")
		token   = fs.String("token", os.Getenv("PIAXIS_TOKEN"), "Bearer token (defaults to PIAXIS_TOKEN)")
		store   = fs.String("store", "", "Store identifier")
		key     = fs.String("key", "", "Idempotency key; generated when blank, reuse for retries")
		file    = fs.String("file", "", "Path to the delta CSV file")
		refresh = fs.Bool("refresh", true, "List products after a successful import")
		verbose = fs.Bool("v", false, "Verbose logging")
	)
	fs.Parse(args)

	logger := newLogger(*verbose)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "import: -file is required")
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	client := importer.NewClient(*server, *token, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary, err := client.Import(ctx, importer.ImportRequest{
		StoreID:        *store,
		IdempotencyKey: *key,
		FileName:       *file,
		File:           f,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Batch:           %s\n", summary.BatchID)
	fmt.Printf("Idempotency key: %s\n", summary.IdempotencyKey)
	if summary.Replayed {
		fmt.Println("Result:          replayed (already applied)")
	}
	fmt.Printf("Applied:         %d\n", summary.AppliedCount())
	fmt.Printf("Conflicts:       %d\n", summary.ConflictCount())

	for _, c := range summary.Conflicts {
		fmt.Printf("  row %d: %s (%s)\n", c.Row, c.Message, c.Reason)
	}

	if *refresh && !summary.Replayed {
		// Refresh runs after the import resolves so displayed stock
		// reflects the applied deltas
		products, err := client.RefreshProducts(ctx, *store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "import: refresh failed: %v\n", err)
			os.Exit(1)
		}
		printProducts(products)
	}
}

func runTemplate(args []string) {
	fs := flag.NewFlagSet("template", flag.ExitOnError)
	out := fs.String("o", "", "Output file (defaults to stdout)")
	fs.Parse(args)

	if *out == "" {
		importer.CopyTemplate(os.Stdout)
		return
	}

	if err := importer.WriteTemplate(*out); err != nil {
		fmt.Fprintf(os.Stderr, "template: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Template written to %s\n", *out)
}

func runProducts(args []string) {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	var (
		server  = fs.String("server", getEnv("PIAXIS_SERVER", "http://localhost:8080"), "API server base URL")
		token   = fs.String("token", os.Getenv("PIAXIS_TOKEN"), "Bearer token (defaults to PIAXIS_TOKEN)")
		store   = fs.String("store", "", "Store identifier")
		verbose = fs.Bool("v", false, "Verbose logging")
	)
	fs.Parse(args)

	client := importer.NewClient(*server, *token, newLogger(*verbose))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	products, err := client.RefreshProducts(ctx, *store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "products: %v\n", err)
		os.Exit(1)
	}
	printProducts(products)
}

func printProducts(products []*domain.Product) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SKU\tNAME\tQTY\tPRICE\tLOCATION")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			p.SKU, p.Name, p.Quantity, p.UnitPrice.StringFixed(2), p.LocationID)
	}
	w.Flush()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
