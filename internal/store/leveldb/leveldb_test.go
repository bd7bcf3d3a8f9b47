package leveldb

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"token_sales/internal/sales"
)

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = b
	}
	return k
}

func testSale(address solana.PublicKey, createdAt int64) *sales.SaleAccount {
	return &sales.SaleAccount{
		Address:           address,
		Authority:         key(1),
		TokenMint:         key(2),
		PaymentMint:       key(3),
		Vault:             key(4),
		PricePerUnit:      10,
		QuantityAvailable: 100,
		TotalDeposited:    100,
		CreatedAt:         createdAt,
		Status:            sales.StatusActive,
		Bump:              255,
		VaultBump:         254,
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	sale := testSale(key(9), 100)
	sig := solana.Signature{5}
	require.NoError(t, store.Update(ctx, func(tx sales.Tx) error {
		if err := tx.PutSale(sale); err != nil {
			return err
		}
		if err := tx.SetBalance(key(1), key(2), 42); err != nil {
			return err
		}
		return tx.MarkProcessed(sig)
	}))
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.View(ctx, func(tx sales.Tx) error {
		got, err := tx.Sale(sale.Address)
		require.NoError(t, err)
		assert.Equal(t, sale, got)

		balance, err := tx.Balance(key(1), key(2))
		require.NoError(t, err)
		assert.Equal(t, uint64(42), balance)

		seen, err := tx.Processed(sig)
		require.NoError(t, err)
		assert.True(t, seen)
		return nil
	}))
}

func TestStoreDiscardsFailedUpdate(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx sales.Tx) error {
		require.NoError(t, tx.SetBalance(key(1), key(2), 7))
		balance, err := tx.Balance(key(1), key(2))
		require.NoError(t, err)
		assert.Equal(t, uint64(7), balance)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, store.View(ctx, func(tx sales.Tx) error {
		balance, err := tx.Balance(key(1), key(2))
		require.NoError(t, err)
		assert.Zero(t, balance)
		_, err = tx.Sale(key(9))
		assert.ErrorIs(t, err, sales.ErrNotFound)
		return nil
	}))
}

func TestStoreViewIsReadOnly(t *testing.T) {
	store := openStore(t)
	err := store.View(context.Background(), func(tx sales.Tx) error {
		return tx.MarkProcessed(solana.Signature{1})
	})
	assert.ErrorIs(t, err, sales.ErrReadOnly)
}

func TestStoreListSalesOrdered(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.Update(ctx, func(tx sales.Tx) error {
		for _, s := range []*sales.SaleAccount{testSale(key(7), 300), testSale(key(8), 100), testSale(key(6), 300)} {
			if err := tx.PutSale(s); err != nil {
				return err
			}
		}
		return tx.SetBalance(key(1), key(2), 1)
	}))

	list, err := store.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, key(8), list[0].Address)
	assert.Equal(t, key(6), list[1].Address)
	assert.Equal(t, key(7), list[2].Address)
}

func TestStoreListSalesBreaksTiesByAddressBytes(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	low, high := key(0x01), key(0x0f)
	require.Greater(t, low.String(), high.String())
	require.NoError(t, store.Update(ctx, func(tx sales.Tx) error {
		if err := tx.PutSale(testSale(high, 500)); err != nil {
			return err
		}
		return tx.PutSale(testSale(low, 500))
	}))

	list, err := store.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, low, list[0].Address)
	assert.Equal(t, high, list[1].Address)
}

func TestStoreSeedSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	id := solana.Signature{0x5e, 0xed}
	grants := []sales.Grant{{Owner: key(1), Mint: key(2), Amount: 1000}}

	for boot := 0; boot < 2; boot++ {
		store, err := Open(dir)
		require.NoError(t, err)
		svc := sales.NewService(store, nil, zaptest.NewLogger(t))

		applied, err := svc.Seed(ctx, id, grants)
		require.NoError(t, err)
		assert.Equal(t, boot == 0, applied)

		balance, err := svc.Balance(ctx, key(1), key(2))
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), balance)
		require.NoError(t, store.Close())
	}
}
