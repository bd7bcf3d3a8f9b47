package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"token_sales/api"
	"token_sales/internal/dispatch"
	"token_sales/internal/sales"
)

func newNode(t *testing.T) (*httptest.Server, *sales.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	svc := sales.NewService(sales.NewLocalStorage(), nil, logger)
	router := gin.New()
	api.InitRoutes(router, api.Dependencies{
		Service:    svc,
		Dispatcher: dispatch.New(svc, logger),
		Logger:     logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv, svc := newNode(t)
	c := New(srv.URL, 5*time.Second)

	authority, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	tokenMint := solana.NewWallet().PublicKey()
	paymentMint := solana.NewWallet().PublicKey()
	require.NoError(t, svc.Fund(ctx, authority.PublicKey(), tokenMint, 30))

	tx, sale, err := dispatch.NewInitializeTransaction(sales.DefaultProgramID, authority.PublicKey(), tokenMint, paymentMint,
		dispatch.Initialize{PricePerUnit: 4, InitialQuantity: 30}, 1)
	require.NoError(t, err)
	require.NoError(t, tx.Sign(authority))

	res, err := c.Submit(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), res.Signature)
	assert.Equal(t, sale, res.Sale.Address)

	got, err := c.Sale(ctx, sale)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), got.QuantityAvailable)

	found, err := c.Search(ctx, authority.PublicKey().String(), "active")
	require.NoError(t, err)
	assert.Equal(t, 1, found.Metadata.Quantity)

	balance, err := c.Balance(ctx, authority.PublicKey(), tokenMint)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestClientSurfacesAPIError(t *testing.T) {
	srv, _ := newNode(t)
	c := New(srv.URL, 5*time.Second)

	_, err := c.Sale(context.Background(), solana.NewWallet().PublicKey())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, uint32(6013), apiErr.Code)
	assert.Equal(t, "AccountNotFound", apiErr.Name)
}

func TestClientTransportError(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second)
	_, err := c.Balance(context.Background(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	require.Error(t, err)
	var apiErr *APIError
	assert.NotErrorAs(t, err, &apiErr)
}
