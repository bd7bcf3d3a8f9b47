package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"token_sales/internal/config"
	"token_sales/internal/dispatch"
	"token_sales/internal/journal"
	"token_sales/internal/sales"
)

type testEnv struct {
	router      *gin.Engine
	service     *sales.Service
	authority   solana.PrivateKey
	buyer       solana.PrivateKey
	tokenMint   solana.PublicKey
	paymentMint solana.PublicKey
	nonce       uint64
}

func newTestEnv(t *testing.T, limits config.RateLimitConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	svc := sales.NewService(sales.NewLocalStorage(), nil, logger)
	svc.SetEmitter(j)

	authority, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	buyer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	env := &testEnv{
		router:      gin.New(),
		service:     svc,
		authority:   authority,
		buyer:       buyer,
		tokenMint:   solana.NewWallet().PublicKey(),
		paymentMint: solana.NewWallet().PublicKey(),
	}
	InitRoutes(env.router, Dependencies{
		Service:    svc,
		Dispatcher: dispatch.New(svc, logger),
		Journal:    j,
		Logger:     logger,
		RateLimit:  limits,
	})

	ctx := context.Background()
	require.NoError(t, svc.Fund(ctx, authority.PublicKey(), env.tokenMint, 100))
	require.NoError(t, svc.Fund(ctx, buyer.PublicKey(), env.paymentMint, 500))
	return env
}

func (e *testEnv) submit(t *testing.T, tx *dispatch.Transaction, key solana.PrivateKey) *httptest.ResponseRecorder {
	t.Helper()
	require.NoError(t, tx.Sign(key))
	body, err := json.Marshal(tx.Envelope())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) next() uint64 {
	e.nonce++
	return e.nonce
}

type submitResponse struct {
	Signature   string                `json:"signature"`
	Instruction string                `json:"instruction"`
	Sale        sales.SaleAccount     `json:"sale"`
	Purchase    *sales.PurchaseRecord `json:"purchase"`
}

// TestSalesHappyPath_FullFlow covers initialize -> purchase -> close -> reads.
func TestSalesHappyPath_FullFlow(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})
	var saleAddress solana.PublicKey

	t.Run("POST_Initialize", func(t *testing.T) {
		tx, sale, err := dispatch.NewInitializeTransaction(sales.DefaultProgramID, env.authority.PublicKey(), env.tokenMint, env.paymentMint,
			dispatch.Initialize{PricePerUnit: 10, InitialQuantity: 100}, env.next())
		require.NoError(t, err)

		w := env.submit(t, tx, env.authority)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotEmpty(t, w.Header().Get(requestIDHeader))

		var resp submitResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "initialize", resp.Instruction)
		assert.Equal(t, sale, resp.Sale.Address)
		assert.Equal(t, sales.StatusActive, resp.Sale.Status)
		assert.Equal(t, uint64(100), resp.Sale.QuantityAvailable)
		saleAddress = sale
	})

	if saleAddress.IsZero() {
		t.Fatal("sale was not initialized")
	}

	t.Run("POST_Purchase", func(t *testing.T) {
		tx, err := dispatch.NewPurchaseTransaction(env.buyer.PublicKey(), saleAddress, 5, env.next())
		require.NoError(t, err)

		w := env.submit(t, tx, env.buyer)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp submitResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Purchase)
		assert.Equal(t, uint64(50), resp.Purchase.Cost)
		assert.Equal(t, uint64(95), resp.Sale.QuantityAvailable)
	})

	t.Run("GET_Balance", func(t *testing.T) {
		w := env.get(fmt.Sprintf("/balances/%s/%s", env.buyer.PublicKey(), env.tokenMint))
		require.Equal(t, http.StatusOK, w.Code)

		var resp BalanceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, uint64(5), resp.Amount)
	})

	t.Run("POST_Close", func(t *testing.T) {
		tx, err := dispatch.NewCloseTransaction(env.authority.PublicKey(), saleAddress, env.next())
		require.NoError(t, err)
		w := env.submit(t, tx, env.authority)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("GET_Sale", func(t *testing.T) {
		w := env.get("/sales/" + saleAddress.String())
		require.Equal(t, http.StatusOK, w.Code)

		var sale sales.SaleAccount
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
		assert.Equal(t, sales.StatusClosed, sale.Status)
		assert.Equal(t, uint64(5), sale.TotalSold)
	})

	t.Run("GET_SearchSales", func(t *testing.T) {
		w := env.get("/sales?status=closed&authority=" + env.authority.PublicKey().String())
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Results  []sales.SaleAccount `json:"results"`
			Metadata sales.SalesMetadata `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Results, 1)
		assert.Equal(t, 1, resp.Metadata.Closed)
	})

	t.Run("GET_Events", func(t *testing.T) {
		w := env.get("/sales/" + saleAddress.String() + "/events")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Events []sales.Event `json:"events"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Events, 3)
		assert.Equal(t, sales.EventTypeSaleClosed, resp.Events[2].Type)
	})
}

func TestSubmitTransactionErrors(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})
	tx, sale, err := dispatch.NewInitializeTransaction(sales.DefaultProgramID, env.authority.PublicKey(), env.tokenMint, env.paymentMint,
		dispatch.Initialize{PricePerUnit: 10, InitialQuantity: 100}, env.next())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, env.submit(t, tx, env.authority).Code)

	decode := func(w *httptest.ResponseRecorder) errorBody {
		var body errorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	t.Run("replay", func(t *testing.T) {
		w := env.submit(t, tx, env.authority)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, errorBody{Code: 6019, Error: "DuplicateTransaction", Message: decode(w).Message}, decode(w))
	})

	t.Run("inventory", func(t *testing.T) {
		tx, err := dispatch.NewPurchaseTransaction(env.buyer.PublicKey(), sale, 101, env.next())
		require.NoError(t, err)
		w := env.submit(t, tx, env.buyer)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "InsufficientInventory", decode(w).Error)
	})

	t.Run("unauthorized", func(t *testing.T) {
		tx, err := dispatch.NewCloseTransaction(env.buyer.PublicKey(), sale, env.next())
		require.NoError(t, err)
		w := env.submit(t, tx, env.buyer)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, uint32(6001), decode(w).Code)
	})

	t.Run("wrong signer", func(t *testing.T) {
		tx, err := dispatch.NewCloseTransaction(env.authority.PublicKey(), sale, env.next())
		require.NoError(t, err)
		w := env.submit(t, tx, env.buyer)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "MissingSignature", decode(w).Error)
	})

	t.Run("bad payload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReadEndpointErrors(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})
	unknown := solana.NewWallet().PublicKey()

	w := env.get("/sales/" + unknown.String())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "AccountNotFound")

	assert.Equal(t, http.StatusNotFound, env.get("/sales/"+unknown.String()+"/events").Code)
	assert.Equal(t, http.StatusBadRequest, env.get("/sales/not-a-key").Code)
	assert.Equal(t, http.StatusBadRequest, env.get("/sales?status=pending").Code)
	assert.Equal(t, http.StatusBadRequest, env.get("/sales?authority=0OIl").Code)
	assert.Equal(t, http.StatusOK, env.get("/ping").Code)
}

func TestSubmitTransactionRateLimited(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})

	tx, _, err := dispatch.NewInitializeTransaction(sales.DefaultProgramID, env.authority.PublicKey(), env.tokenMint, env.paymentMint,
		dispatch.Initialize{PricePerUnit: 1, InitialQuantity: 1}, env.next())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, env.submit(t, tx, env.authority).Code)

	tx, err = dispatch.NewDepositTransaction(env.authority.PublicKey(), solana.NewWallet().PublicKey(), 1, env.next())
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, env.submit(t, tx, env.authority).Code)
}

func TestEventsRouteNeedsJournal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	svc := sales.NewService(sales.NewLocalStorage(), nil, logger)
	router := gin.New()
	InitRoutes(router, Dependencies{
		Service:    svc,
		Dispatcher: dispatch.New(svc, logger),
		Logger:     logger,
	})

	authority := solana.NewWallet().PublicKey()
	tokenMint := solana.NewWallet().PublicKey()
	ctx := context.Background()
	require.NoError(t, svc.Fund(ctx, authority, tokenMint, 10))
	sale, err := svc.Initialize(ctx, sales.InitializeParams{
		Authority: authority, TokenMint: tokenMint, PaymentMint: solana.NewWallet().PublicKey(),
		PricePerUnit: 1, InitialQuantity: 10,
	})
	require.NoError(t, err)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}
	assert.Equal(t, http.StatusOK, get("/sales/"+sale.Address.String()).Code)
	w := get("/sales/" + sale.Address.String() + "/events")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "AccountNotFound")
}
