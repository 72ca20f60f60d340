package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salescore/sales-service/internal/domain/sale"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

var _ sale.TxStore = (*SaleStore)(nil)

// SaleStore implements sale.TxStore backed by PostgreSQL. Items are
// serialized to JSON for storage in the JSONB column; concurrent writers to
// the same sale are serialized by row-level locking plus the version guard.
type SaleStore struct {
	pool *pgxpool.Pool
	db   querier
}

// NewSaleStore returns a SaleStore that uses the given pool.
func NewSaleStore(pool *pgxpool.Pool) *SaleStore {
	return &SaleStore{pool: pool, db: pool}
}

// Begin opens a transaction. Operations on the returned Tx's store view run
// inside it until Commit or Rollback.
func (s *SaleStore) Begin(ctx context.Context) (sale.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	return &saleTx{
		tx:    tx,
		store: &SaleStore{pool: s.pool, db: tx},
	}, nil
}

const addSaleSQL = `INSERT INTO sales
	(id, sale_number, sale_date, customer_id, branch_id, items, is_cancelled, is_deleted, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Add persists a new sale.
func (s *SaleStore) Add(ctx context.Context, agg *sale.Sale) error {
	snap := agg.Snapshot()
	itemsJSON, err := json.Marshal(snap.Items)
	if err != nil {
		return errors.Wrap(err, "marshal sale items")
	}

	_, err = s.db.Exec(ctx, addSaleSQL,
		snap.ID, snap.SaleNumber, snap.SaleDate, snap.CustomerID, snap.BranchID,
		itemsJSON, snap.IsCancelled, snap.IsDeleted, snap.Version, snap.CreatedAt, snap.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(sale.ErrConflict, "sale number %q already exists", snap.SaleNumber)
		}
		return errors.Wrapf(err, "add sale %q", snap.ID)
	}
	return nil
}

const selectSaleSQL = `SELECT id, sale_number, sale_date, customer_id, branch_id, items,
	is_cancelled, is_deleted, version, created_at, updated_at FROM sales`

// GetByID returns the sale with the given id, excluding soft-deleted ones.
func (s *SaleStore) GetByID(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	row := s.db.QueryRow(ctx, selectSaleSQL+` WHERE id = $1 AND NOT is_deleted`, id)
	return scanSale(row)
}

// GetByIDAny returns the sale with the given id regardless of its soft-delete
// flag. Kept for audit and verification paths.
func (s *SaleStore) GetByIDAny(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	row := s.db.QueryRow(ctx, selectSaleSQL+` WHERE id = $1`, id)
	return scanSale(row)
}

// GetAll returns all non-deleted sales ordered by creation time.
func (s *SaleStore) GetAll(ctx context.Context) ([]*sale.Sale, error) {
	rows, err := s.db.Query(ctx, selectSaleSQL+` WHERE NOT is_deleted ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "list sales")
	}
	defer rows.Close()

	var sales []*sale.Sale
	for rows.Next() {
		agg, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, agg)
	}
	return sales, rows.Err()
}

const updateSaleSQL = `UPDATE sales SET
	sale_date = $2, customer_id = $3, branch_id = $4, items = $5,
	is_cancelled = $6, updated_at = $7, version = version + 1
	WHERE id = $1 AND version = $8 AND NOT is_deleted`

// Update overwrites the current row wholesale, guarded by the aggregate's
// version. A version mismatch on an existing row yields sale.ErrConflict.
func (s *SaleStore) Update(ctx context.Context, agg *sale.Sale) error {
	snap := agg.Snapshot()
	itemsJSON, err := json.Marshal(snap.Items)
	if err != nil {
		return errors.Wrap(err, "marshal sale items")
	}

	tag, err := s.db.Exec(ctx, updateSaleSQL,
		snap.ID, snap.SaleDate, snap.CustomerID, snap.BranchID, itemsJSON,
		snap.IsCancelled, snap.UpdatedAt, snap.Version,
	)
	if err != nil {
		return errors.Wrapf(err, "update sale %q", snap.ID)
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, snap.ID)
	}

	agg.Version++
	return nil
}

const markDeletedSQL = `UPDATE sales SET
	is_deleted = TRUE, updated_at = $2, version = version + 1
	WHERE id = $1 AND version = $3 AND NOT is_deleted`

// MarkDeleted soft-deletes the sale, hiding it from default reads while the
// row is retained.
func (s *SaleStore) MarkDeleted(ctx context.Context, agg *sale.Sale) error {
	snap := agg.Snapshot()
	tag, err := s.db.Exec(ctx, markDeletedSQL, snap.ID, snap.UpdatedAt, snap.Version)
	if err != nil {
		return errors.Wrapf(err, "mark sale %q deleted", snap.ID)
	}
	if tag.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, snap.ID)
	}

	agg.Version++
	return nil
}

// staleOrMissing distinguishes a concurrent modification from an absent or
// soft-deleted row after a guarded write matched nothing.
func (s *SaleStore) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1 AND NOT is_deleted)`, id,
	).Scan(&exists)
	if err != nil {
		return errors.Wrapf(err, "check sale %q", id)
	}
	if exists {
		return sale.ErrConflict
	}
	return sale.ErrNotFound
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*sale.Sale, error) {
	var (
		snap      sale.Snapshot
		itemsJSON []byte
	)
	err := row.Scan(
		&snap.ID, &snap.SaleNumber, &snap.SaleDate, &snap.CustomerID, &snap.BranchID,
		&itemsJSON, &snap.IsCancelled, &snap.IsDeleted, &snap.Version, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan sale")
	}
	if err := json.Unmarshal(itemsJSON, &snap.Items); err != nil {
		return nil, errors.Wrap(err, "unmarshal sale items")
	}
	return sale.FromSnapshot(snap), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// saleTx adapts pgx.Tx to sale.Tx.
type saleTx struct {
	tx    pgx.Tx
	store *SaleStore
}

func (t *saleTx) Store() sale.Store { return t.store }

// Commit commits the transaction. Committing a transaction that was already
// committed or rolled back returns sale.ErrTransaction.
func (t *saleTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return sale.ErrTransaction
		}
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Rollback aborts the transaction. It is safe to call after Commit or a
// previous Rollback: a closed transaction is a no-op.
func (t *saleTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Wrap(err, "rollback")
	}
	return nil
}
