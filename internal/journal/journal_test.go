package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"token_sales/internal/sales"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRecordsServiceEvents(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	authority := solana.NewWallet().PublicKey()
	buyer := solana.NewWallet().PublicKey()
	tokenMint := solana.NewWallet().PublicKey()
	paymentMint := solana.NewWallet().PublicKey()

	svc := sales.NewService(sales.NewLocalStorage(), nil, zaptest.NewLogger(t))
	svc.SetEmitter(j)
	require.NoError(t, svc.Fund(ctx, authority, tokenMint, 10))
	require.NoError(t, svc.Fund(ctx, buyer, paymentMint, 10))

	sale, err := svc.Initialize(ctx, sales.InitializeParams{
		Authority: authority, TokenMint: tokenMint, PaymentMint: paymentMint,
		PricePerUnit: 2, InitialQuantity: 10,
	})
	require.NoError(t, err)
	_, _, err = svc.Purchase(ctx, sales.PurchaseParams{TxID: solana.Signature{9}, Sale: sale.Address, Buyer: buyer, Quantity: 3})
	require.NoError(t, err)
	_, _, err = svc.Purchase(ctx, sales.PurchaseParams{Sale: sale.Address, Buyer: buyer, Quantity: 50})
	require.ErrorIs(t, err, sales.ErrInsufficientInventory)

	events, err := j.List(ctx, sale.Address)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, sales.EventTypeSaleInitialized, events[0].Type)
	assert.Equal(t, sales.EventTypeSalePurchased, events[1].Type)
	assert.Equal(t, solana.Signature{9}.String(), events[1].TxID)
	assert.Equal(t, "3", events[1].Attributes["quantity"])
	assert.Equal(t, buyer.String(), events[1].Attributes["buyer"])
}

func TestJournalListUnknownSale(t *testing.T) {
	j := openJournal(t)
	events, err := j.List(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Empty(t, events)
}
