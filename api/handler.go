package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"token_sales/internal/dispatch"
	"token_sales/internal/sales"
)

// EventLister reads the settlement journal of a sale.
type EventLister interface {
	List(ctx context.Context, sale solana.PublicKey) ([]sales.Event, error)
}

// salesHandler implements the HTTP surface over the service and dispatcher.
type salesHandler struct {
	salesService *sales.Service
	dispatcher   *dispatch.Dispatcher
	journal      EventLister
	logger       *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, dispatcher *dispatch.Dispatcher, journal EventLister, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService: salesService,
		dispatcher:   dispatcher,
		journal:      journal,
		logger:       logger,
	}
}

type errorBody struct {
	Code    uint32 `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// BalanceResponse is returned by GET /balances/:owner/:mint.
type BalanceResponse struct {
	Owner  solana.PublicKey `json:"owner"`
	Mint   solana.PublicKey `json:"mint"`
	Amount uint64           `json:"amount"`
}

func statusFor(serr *sales.Error) int {
	switch serr.Code {
	case sales.ErrAccountNotFound.Code:
		return http.StatusNotFound
	case sales.ErrMissingSignature.Code, sales.ErrInvalidSignature.Code:
		return http.StatusUnauthorized
	case sales.ErrUnauthorized.Code:
		return http.StatusForbidden
	case sales.ErrAlreadyInitialized.Code, sales.ErrSaleClosed.Code, sales.ErrAlreadyClosed.Code,
		sales.ErrSaleEnded.Code, sales.ErrDuplicateTransaction.Code, sales.ErrBalanceMismatch.Code:
		return http.StatusConflict
	case sales.ErrInsufficientFunds.Code, sales.ErrInsufficientInventory.Code:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func (h *salesHandler) writeError(ctx *gin.Context, err error) {
	if serr, ok := sales.AsError(err); ok {
		ctx.JSON(statusFor(serr), errorBody{Code: uint32(serr.Code), Error: serr.Name, Message: err.Error()})
		return
	}
	if errors.Is(err, sales.ErrInvalidStatus) {
		ctx.JSON(http.StatusBadRequest, errorBody{Error: "InvalidStatus", Message: err.Error()})
		return
	}
	h.logger.Error("request failed", zap.String("request_id", ctx.GetString("request_id")), zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, errorBody{Error: "Internal", Message: "internal error"})
}

func (h *salesHandler) badRequest(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusBadRequest, errorBody{Error: "BadRequest", Message: message})
}

func (h *salesHandler) pathKey(ctx *gin.Context, name string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(ctx.Param(name))
	if err != nil {
		h.badRequest(ctx, "invalid "+name+": "+err.Error())
		return solana.PublicKey{}, false
	}
	return key, true
}

// handleSubmitTransaction handles the POST /transactions endpoint.
func (h *salesHandler) handleSubmitTransaction(ctx *gin.Context) {
	var env dispatch.Envelope
	if err := ctx.ShouldBindJSON(&env); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		h.badRequest(ctx, "invalid request payload")
		return
	}
	tx, err := env.Transaction()
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	res, err := h.dispatcher.Dispatch(ctx.Request.Context(), tx)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

// handleSearchSales handles GET /sales?authority=&status=.
func (h *salesHandler) handleSearchSales(ctx *gin.Context) {
	authority := ctx.Query("authority")
	status := ctx.Query("status")
	if authority != "" {
		if _, err := solana.PublicKeyFromBase58(authority); err != nil {
			h.badRequest(ctx, "invalid authority: "+err.Error())
			return
		}
	}

	results, metadata, err := h.salesService.SearchSales(ctx.Request.Context(), authority, status)
	if err != nil {
		h.logger.Error("Error searching sales",
			zap.String("authority_filter", authority),
			zap.String("status_filter", status),
			zap.Error(err),
		)
		h.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"results": results, "metadata": metadata})
}

func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	address, ok := h.pathKey(ctx, "address")
	if !ok {
		return
	}
	sale, err := h.salesService.GetSale(ctx.Request.Context(), address)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

func (h *salesHandler) handleGetEvents(ctx *gin.Context) {
	address, ok := h.pathKey(ctx, "address")
	if !ok {
		return
	}
	if _, err := h.salesService.GetSale(ctx.Request.Context(), address); err != nil {
		h.writeError(ctx, err)
		return
	}
	events, err := h.journal.List(ctx.Request.Context(), address)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *salesHandler) handleGetBalance(ctx *gin.Context) {
	owner, ok := h.pathKey(ctx, "owner")
	if !ok {
		return
	}
	mint, ok := h.pathKey(ctx, "mint")
	if !ok {
		return
	}
	amount, err := h.salesService.Balance(ctx.Request.Context(), owner, mint)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, BalanceResponse{Owner: owner, Mint: mint, Amount: amount})
}
