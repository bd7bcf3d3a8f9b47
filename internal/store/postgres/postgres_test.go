package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"token_sales/internal/sales"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TOKEN_SALES_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TOKEN_SALES_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := Open(ctx, dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = store.pool.Exec(ctx, `TRUNCATE sale_accounts, balances, processed_transactions`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresStoreLedger(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	require.NoError(t, store.Update(ctx, func(tx sales.Tx) error {
		if err := tx.SetBalance(owner, mint, math.MaxUint64); err != nil {
			return err
		}
		return tx.MarkProcessed(solana.Signature{1})
	}))

	require.NoError(t, store.View(ctx, func(tx sales.Tx) error {
		amount, err := tx.Balance(owner, mint)
		require.NoError(t, err)
		assert.Equal(t, uint64(math.MaxUint64), amount)
		seen, err := tx.Processed(solana.Signature{1})
		require.NoError(t, err)
		assert.True(t, seen)
		return nil
	}))
}

func TestPostgresStoreRollsBack(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx sales.Tx) error {
		require.NoError(t, tx.SetBalance(owner, mint, 5))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, store.View(ctx, func(tx sales.Tx) error {
		amount, err := tx.Balance(owner, mint)
		require.NoError(t, err)
		assert.Zero(t, amount)
		assert.ErrorIs(t, tx.SetBalance(owner, mint, 1), sales.ErrReadOnly)
		return nil
	}))
}

func TestPostgresStoreRunsSettlement(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	authority := solana.NewWallet().PublicKey()
	tokenMint := solana.NewWallet().PublicKey()
	paymentMint := solana.NewWallet().PublicKey()

	svc := sales.NewService(store, nil, zaptest.NewLogger(t))
	require.NoError(t, svc.Fund(ctx, authority, tokenMint, 10))
	sale, err := svc.Initialize(ctx, sales.InitializeParams{
		Authority: authority, TokenMint: tokenMint, PaymentMint: paymentMint,
		PricePerUnit: 2, InitialQuantity: 10,
	})
	require.NoError(t, err)

	list, err := store.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sale, list[0])
}

func TestPostgresStoreListSalesBreaksTiesByAddressBytes(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	var low, high solana.PublicKey
	for i := range low {
		low[i], high[i] = 0x01, 0x0f
	}
	require.Greater(t, low.String(), high.String())

	require.NoError(t, store.Update(ctx, func(tx sales.Tx) error {
		for _, addr := range []solana.PublicKey{high, low} {
			sale := &sales.SaleAccount{
				Address:           addr,
				Authority:         solana.NewWallet().PublicKey(),
				TokenMint:         solana.NewWallet().PublicKey(),
				PaymentMint:       solana.NewWallet().PublicKey(),
				Vault:             solana.NewWallet().PublicKey(),
				PricePerUnit:      1,
				QuantityAvailable: 1,
				TotalDeposited:    1,
				CreatedAt:         500,
				Status:            sales.StatusActive,
			}
			if err := tx.PutSale(sale); err != nil {
				return err
			}
		}
		return nil
	}))

	list, err := store.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, low, list[0].Address)
	assert.Equal(t, high, list[1].Address)
}
