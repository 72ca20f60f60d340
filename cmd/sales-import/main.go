// Command sales-import loads historical sale exports into the database.
//
// Exports are gzip-compressed JSONL files (one sale record per line) with the
// shape produced by the legacy branch systems:
//
//	{"saleNumber":"SALE-1A2B3C4D","saleDate":"2025-01-15T10:00:00Z",
//	 "customerId":"c-1","branchId":"b-1",
//	 "items":[{"productId":"p-1","unitPrice":"10.00","quantity":5}]}
//
// The same sale can appear in more than one export file. A bloom-filter pass
// over every file detects cross-file duplicates up front so only the first
// occurrence of each sale number is imported.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/salescore/sales-service/internal/domain/sale"
	"github.com/salescore/sales-service/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// saleRecord is one line of a legacy export file.
type saleRecord struct {
	SaleNumber string       `json:"saleNumber"`
	SaleDate   time.Time    `json:"saleDate"`
	CustomerID string       `json:"customerId"`
	BranchID   string       `json:"branchId"`
	Items      []itemRecord `json:"items"`
}

type itemRecord struct {
	ProductID string          `json:"productId"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz export files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("sales import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("sales import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files found in %s", dataDir)
	}
	sort.Strings(files)

	// Pass 1: build one bloom filter of sale numbers per file, concurrently.
	slog.Info("pass 1: building sale-number filters", slog.Int("files", len(files)))

	filters, err := buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build filters")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Pass 2: import each file in order. A record is skipped when its sale
	// number also appears in an EARLIER file; that file already imported it.
	store := postgres.NewSaleStore(pool)
	var imported, skipped, rejected int

	for i, f := range files {
		stats, err := importFile(ctx, store, f, filters[:i])
		if err != nil {
			return errors.Wrapf(err, "import %s", f)
		}
		imported += stats.imported
		skipped += stats.skipped
		rejected += stats.rejected

		slog.Info("file imported",
			slog.String("file", filepath.Base(f)),
			slog.Int("imported", stats.imported),
			slog.Int("skipped", stats.skipped),
			slog.Int("rejected", stats.rejected),
		)
	}

	slog.Info("import summary",
		slog.Int("imported", imported),
		slog.Int("skipped", skipped),
		slog.Int("rejected", rejected),
	)
	return nil
}

// buildFilters creates one bloom filter of sale numbers per file, concurrently.
func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line []byte) error {
			var rec saleRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				// Malformed lines are counted and rejected in pass 2.
				return nil
			}
			if rec.SaleNumber != "" {
				filter.AddString(rec.SaleNumber)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("records", count),
					)
				}
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_records", count),
		)

		filters[idx] = filter
		return nil
	}
}

type importStats struct {
	imported int
	skipped  int
	rejected int
}

// importFile streams one export file and persists every record that is not a
// duplicate of an earlier file. Records are rebuilt through the domain
// constructors so quantity limits and discount tiers are re-applied; records
// failing validation are logged and counted, not imported.
func importFile(ctx context.Context, store *postgres.SaleStore, path string, earlier []*bloom.BloomFilter) (importStats, error) {
	var stats importStats

	err := streamGzFile(ctx, path, func(line []byte) error {
		var rec saleRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.rejected++
			return nil
		}

		for _, f := range earlier {
			if f.TestString(rec.SaleNumber) {
				stats.skipped++
				return nil
			}
		}

		agg, err := buildSale(rec)
		if err != nil {
			slog.Warn("record rejected",
				slog.String("sale_number", rec.SaleNumber),
				slog.String("error", err.Error()),
			)
			stats.rejected++
			return nil
		}

		if err := store.Add(ctx, agg); err != nil {
			// Bloom filters have false positives; the unique index on
			// sale_number is the authoritative duplicate check.
			if errors.Is(err, sale.ErrConflict) {
				stats.skipped++
				return nil
			}
			return errors.Wrapf(err, "persist sale %s", rec.SaleNumber)
		}
		stats.imported++
		return nil
	})

	return stats, err
}

func buildSale(rec saleRecord) (*sale.Sale, error) {
	agg, err := sale.New(rec.SaleNumber, rec.SaleDate, rec.CustomerID, rec.BranchID)
	if err != nil {
		return nil, err
	}
	if len(rec.Items) == 0 {
		return nil, errors.New("sale has no items")
	}
	for _, it := range rec.Items {
		if err := agg.AddItem(it.ProductID, it.UnitPrice, it.Quantity); err != nil {
			return nil, err
		}
	}
	return agg, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
