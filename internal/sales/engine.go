package sales

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Outcome is what a committed operation produced.
type Outcome struct {
	Sale     *SaleAccount
	Purchase *PurchaseRecord
	Events   []Event
}

// Engine validates and applies settlement operations against a store
// transaction. Every check runs before the first write, so a failed
// operation leaves the transaction untouched even if the caller commits it.
type Engine struct {
	programID solana.PublicKey
	nowFn     func() int64
}

// NewEngine creates an engine for programID using the wall clock.
func NewEngine(programID solana.PublicKey) *Engine {
	return &Engine{
		programID: programID,
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// ProgramID returns the program the engine derives addresses for.
func (e *Engine) ProgramID() solana.PublicKey { return e.programID }

// SetNowFunc overrides the time source used by the engine. Passing nil
// restores the wall clock.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadSale(tx Tx, address solana.PublicKey) (*SaleAccount, error) {
	sale, err := tx.Sale(address)
	if errors.Is(err, ErrNotFound) {
		return nil, wrapf(ErrAccountNotFound, "%s", address)
	}
	if err != nil {
		return nil, fmt.Errorf("load sale %s: %w", address, err)
	}
	if sale.Status == StatusUninitialized {
		return nil, wrapf(ErrAccountNotFound, "%s", address)
	}
	return sale, nil
}

// authorize is the single capability check for authority-only operations.
func authorize(sale *SaleAccount, caller solana.PublicKey) error {
	if !sale.Authority.Equals(caller) {
		return wrapf(ErrUnauthorized, "%s is not the authority of %s", caller, sale.Address)
	}
	return nil
}

// requireFunds fails with ErrInsufficientFunds when owner holds less than
// amount of mint.
func requireFunds(tx Tx, owner, mint solana.PublicKey, amount uint64) error {
	balance, err := tx.Balance(owner, mint)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if balance < amount {
		return wrapf(ErrInsufficientFunds, "%s holds %d of %s, needs %d", owner, balance, mint, amount)
	}
	return nil
}

// transfer moves amount of mint between ledger entries. It debits before it
// reads the destination so a self-transfer nets to zero.
func transfer(tx Tx, from, to, mint solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromBal, err := tx.Balance(from, mint)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if fromBal < amount {
		return wrapf(ErrInsufficientFunds, "%s holds %d of %s, needs %d", from, fromBal, mint, amount)
	}
	if err := tx.SetBalance(from, mint, fromBal-amount); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	toBal, err := tx.Balance(to, mint)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	credited, err := checkedAdd(toBal, amount)
	if err != nil {
		return err
	}
	if err := tx.SetBalance(to, mint, credited); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

// requireCredit fails with ErrArithmeticOverflow when crediting amount to
// owner would overflow. Used to keep overflow detection ahead of any write.
func requireCredit(tx Tx, owner, mint solana.PublicKey, amount uint64) error {
	balance, err := tx.Balance(owner, mint)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	_, err = checkedAdd(balance, amount)
	return err
}

// Initialize creates the sale account and its vault, moving the initial
// inventory from the authority into escrow.
func (e *Engine) Initialize(tx Tx, p InitializeParams) (*Outcome, error) {
	address, bump, err := DeriveSaleAddress(e.programID, p.Authority, p.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("derive sale address: %w", err)
	}
	existing, err := tx.Sale(address)
	switch {
	case err == nil && existing.Status != StatusUninitialized:
		return nil, wrapf(ErrAlreadyInitialized, "%s", address)
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("load sale %s: %w", address, err)
	}
	if p.PricePerUnit == 0 {
		return nil, ErrInvalidPrice
	}
	if p.InitialQuantity == 0 {
		return nil, ErrInvalidAmount
	}
	if p.TokenMint.IsZero() || p.PaymentMint.IsZero() || p.TokenMint.Equals(p.PaymentMint) {
		return nil, ErrInvalidMint
	}
	now := e.now()
	if p.EndTime != 0 && p.EndTime <= now {
		return nil, wrapf(ErrInvalidEndTime, "end time %d is not after %d", p.EndTime, now)
	}
	vault, vaultBump, err := DeriveVaultAddress(e.programID, address)
	if err != nil {
		return nil, fmt.Errorf("derive vault address: %w", err)
	}
	if err := requireFunds(tx, p.Authority, p.TokenMint, p.InitialQuantity); err != nil {
		return nil, err
	}
	if err := requireCredit(tx, vault, p.TokenMint, p.InitialQuantity); err != nil {
		return nil, err
	}

	if err := transfer(tx, p.Authority, vault, p.TokenMint, p.InitialQuantity); err != nil {
		return nil, err
	}
	sale := &SaleAccount{
		Address:           address,
		Authority:         p.Authority,
		TokenMint:         p.TokenMint,
		PaymentMint:       p.PaymentMint,
		Vault:             vault,
		PricePerUnit:      p.PricePerUnit,
		QuantityAvailable: p.InitialQuantity,
		TotalDeposited:    p.InitialQuantity,
		CreatedAt:         now,
		EndTime:           p.EndTime,
		Status:            StatusActive,
		Bump:              bump,
		VaultBump:         vaultBump,
	}
	if err := tx.PutSale(sale); err != nil {
		return nil, fmt.Errorf("store sale %s: %w", address, err)
	}
	return &Outcome{
		Sale:   sale,
		Events: []Event{NewInitializedEvent(sale, p.TxID, now)},
	}, nil
}

// Deposit tops up the sale's inventory from the authority's holdings.
func (e *Engine) Deposit(tx Tx, p DepositParams) (*Outcome, error) {
	sale, err := e.loadSale(tx, p.Sale)
	if err != nil {
		return nil, err
	}
	if err := authorize(sale, p.Authority); err != nil {
		return nil, err
	}
	if sale.Status != StatusActive {
		return nil, ErrSaleClosed
	}
	now := e.now()
	if sale.Expired(now) {
		return nil, ErrSaleEnded
	}
	if p.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if err := requireFunds(tx, p.Authority, sale.TokenMint, p.Amount); err != nil {
		return nil, err
	}
	available, err := checkedAdd(sale.QuantityAvailable, p.Amount)
	if err != nil {
		return nil, err
	}
	deposited, err := checkedAdd(sale.TotalDeposited, p.Amount)
	if err != nil {
		return nil, err
	}
	if err := requireCredit(tx, sale.Vault, sale.TokenMint, p.Amount); err != nil {
		return nil, err
	}

	if err := transfer(tx, p.Authority, sale.Vault, sale.TokenMint, p.Amount); err != nil {
		return nil, err
	}
	sale.QuantityAvailable = available
	sale.TotalDeposited = deposited
	if err := tx.PutSale(sale); err != nil {
		return nil, fmt.Errorf("store sale %s: %w", sale.Address, err)
	}
	return &Outcome{
		Sale:   sale,
		Events: []Event{NewDepositedEvent(sale, p.Amount, p.TxID, now)},
	}, nil
}

// Purchase settles quantity tokens for quantity*price payment units. The
// payment leg, the token leg and the inventory decrement commit together.
func (e *Engine) Purchase(tx Tx, p PurchaseParams) (*Outcome, error) {
	sale, err := e.loadSale(tx, p.Sale)
	if err != nil {
		return nil, err
	}
	if sale.Status != StatusActive {
		return nil, ErrSaleClosed
	}
	now := e.now()
	if sale.Expired(now) {
		return nil, ErrSaleEnded
	}
	if p.Quantity == 0 {
		return nil, ErrInvalidAmount
	}
	if p.Quantity > sale.QuantityAvailable {
		return nil, wrapf(ErrInsufficientInventory, "requested %d, available %d", p.Quantity, sale.QuantityAvailable)
	}
	cost, err := checkedMul(p.Quantity, sale.PricePerUnit)
	if err != nil {
		return nil, err
	}
	sold, err := checkedAdd(sale.TotalSold, p.Quantity)
	if err != nil {
		return nil, err
	}
	proceeds, err := checkedAdd(sale.Proceeds, cost)
	if err != nil {
		return nil, err
	}
	vaultBalance, err := tx.Balance(sale.Vault, sale.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("read vault balance: %w", err)
	}
	if vaultBalance < sale.QuantityAvailable {
		return nil, wrapf(ErrBalanceMismatch, "vault holds %d, recorded %d", vaultBalance, sale.QuantityAvailable)
	}
	if err := requireFunds(tx, p.Buyer, sale.PaymentMint, cost); err != nil {
		return nil, err
	}
	if !p.Buyer.Equals(sale.Authority) {
		if err := requireCredit(tx, sale.Authority, sale.PaymentMint, cost); err != nil {
			return nil, err
		}
	}
	if err := requireCredit(tx, p.Buyer, sale.TokenMint, p.Quantity); err != nil {
		return nil, err
	}

	if err := transfer(tx, p.Buyer, sale.Authority, sale.PaymentMint, cost); err != nil {
		return nil, err
	}
	if err := transfer(tx, sale.Vault, p.Buyer, sale.TokenMint, p.Quantity); err != nil {
		return nil, err
	}
	sale.QuantityAvailable -= p.Quantity
	sale.TotalSold = sold
	sale.Proceeds = proceeds
	if err := tx.PutSale(sale); err != nil {
		return nil, fmt.Errorf("store sale %s: %w", sale.Address, err)
	}
	rec := &PurchaseRecord{
		Sale:         sale.Address,
		Buyer:        p.Buyer,
		Quantity:     p.Quantity,
		PricePerUnit: sale.PricePerUnit,
		Cost:         cost,
		Timestamp:    now,
	}
	return &Outcome{
		Sale:     sale,
		Purchase: rec,
		Events:   []Event{NewPurchasedEvent(sale, rec, p.TxID, now)},
	}, nil
}

// Close ends the sale and returns whatever the vault still holds to the
// authority. The record stays readable afterwards.
func (e *Engine) Close(tx Tx, p CloseParams) (*Outcome, error) {
	sale, err := e.loadSale(tx, p.Sale)
	if err != nil {
		return nil, err
	}
	if err := authorize(sale, p.Authority); err != nil {
		return nil, err
	}
	if sale.Status == StatusClosed {
		return nil, ErrAlreadyClosed
	}
	remaining, err := tx.Balance(sale.Vault, sale.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("read vault balance: %w", err)
	}
	if err := requireCredit(tx, sale.Authority, sale.TokenMint, remaining); err != nil {
		return nil, err
	}

	now := e.now()
	if err := transfer(tx, sale.Vault, sale.Authority, sale.TokenMint, remaining); err != nil {
		return nil, err
	}
	sale.QuantityAvailable = 0
	sale.Status = StatusClosed
	sale.ClosedAt = now
	if err := tx.PutSale(sale); err != nil {
		return nil, fmt.Errorf("store sale %s: %w", sale.Address, err)
	}
	return &Outcome{
		Sale:   sale,
		Events: []Event{NewClosedEvent(sale, remaining, p.TxID, now)},
	}, nil
}
