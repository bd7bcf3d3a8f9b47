// Package postgres keeps the account store in PostgreSQL. Sale records are
// stored in their binary layout and keyed by raw address bytes; ledger
// amounts use NUMERIC because u64 does not fit BIGINT.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"token_sales/internal/sales"
)

//go:embed schema.sql
var schema string

// ledgerLockKey serialises writers across connections.
const ledgerLockKey int64 = 0x746f6b656e73616c

// Store implements sales.Storage on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to dsn, waits for the database and applies the schema.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	var pingErr error
	for i := 0; i < 10; i++ {
		if pingErr = pool.Ping(ctx); pingErr == nil {
			break
		}
		logger.Info("waiting for database", zap.Int("attempt", i+1), zap.Error(pingErr))
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("database not ready: %w", pingErr)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("connected to postgres account store")
	return &Store{pool: pool, logger: logger}, nil
}

// Update runs fn inside a database transaction holding the ledger lock.
func (s *Store) Update(ctx context.Context, fn func(tx sales.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{}, false, fn)
}

// View runs fn inside a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx sales.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, true, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, readOnly bool, fn func(tx sales.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", zap.Error(err))
		}
	}()

	if !readOnly {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
			return fmt.Errorf("acquire ledger lock: %w", err)
		}
	}
	if err := fn(&pgTx{ctx: ctx, tx: tx, readOnly: readOnly}); err != nil {
		return err
	}
	if readOnly {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListSales returns every sale ordered by creation time, then address bytes.
func (s *Store) ListSales(ctx context.Context) ([]*sales.SaleAccount, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, data FROM sale_accounts ORDER BY created_at, address`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var out []*sales.SaleAccount
	for rows.Next() {
		var address, data []byte
		if err := rows.Scan(&address, &data); err != nil {
			return nil, err
		}
		if len(address) != solana.PublicKeyLength {
			return nil, fmt.Errorf("sale address has %d bytes", len(address))
		}
		sale, err := sales.DecodeSaleAccount(solana.PublicKeyFromBytes(address), data)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type pgTx struct {
	ctx      context.Context
	tx       pgx.Tx
	readOnly bool
}

func (t *pgTx) Sale(address solana.PublicKey) (*sales.SaleAccount, error) {
	query := `SELECT data FROM sale_accounts WHERE address = $1`
	if !t.readOnly {
		query += ` FOR UPDATE`
	}
	var data []byte
	err := t.tx.QueryRow(t.ctx, query, address[:]).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sales.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load sale %s: %w", address, err)
	}
	return sales.DecodeSaleAccount(address, data)
}

func (t *pgTx) PutSale(sale *sales.SaleAccount) error {
	if t.readOnly {
		return sales.ErrReadOnly
	}
	data, err := sales.EncodeSaleAccount(sale)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(t.ctx, `
		INSERT INTO sale_accounts (address, authority, created_at, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET data = EXCLUDED.data
	`, sale.Address[:], sale.Authority.String(), sale.CreatedAt, data)
	if err != nil {
		return fmt.Errorf("store sale %s: %w", sale.Address, err)
	}
	return nil
}

func (t *pgTx) Balance(owner, mint solana.PublicKey) (uint64, error) {
	var raw string
	err := t.tx.QueryRow(t.ctx,
		`SELECT amount::text FROM balances WHERE owner = $1 AND mint = $2`,
		owner.String(), mint.String(),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load balance: %w", err)
	}
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return amount, nil
}

func (t *pgTx) SetBalance(owner, mint solana.PublicKey, amount uint64) error {
	if t.readOnly {
		return sales.ErrReadOnly
	}
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO balances (owner, mint, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (owner, mint) DO UPDATE SET amount = EXCLUDED.amount
	`, owner.String(), mint.String(), strconv.FormatUint(amount, 10))
	if err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	return nil
}

func (t *pgTx) Processed(sig solana.Signature) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(t.ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_transactions WHERE signature = $1)`,
		sig.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return exists, nil
}

func (t *pgTx) MarkProcessed(sig solana.Signature) error {
	if t.readOnly {
		return sales.ErrReadOnly
	}
	if _, err := t.tx.Exec(t.ctx, `INSERT INTO processed_transactions (signature) VALUES ($1)`, sig.String()); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

var _ sales.Storage = (*Store)(nil)
