package sales

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Tx is the handle an operation uses to read and stage writes against the
// account store. Writes become visible to other callers only when the
// surrounding Update returns nil.
type Tx interface {
	// Sale returns the record stored at address or ErrNotFound.
	Sale(address solana.PublicKey) (*SaleAccount, error)
	PutSale(sale *SaleAccount) error
	// Balance returns zero for owners that have never held mint.
	Balance(owner, mint solana.PublicKey) (uint64, error)
	SetBalance(owner, mint solana.PublicKey, amount uint64) error
	// Processed reports whether a transaction signature was already settled.
	Processed(sig solana.Signature) (bool, error)
	MarkProcessed(sig solana.Signature) error
}

// Storage is the account store. Update runs fn as one atomic unit: either
// every staged write is committed or none is. Implementations serialise
// Update calls that touch the same accounts.
type Storage interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	ListSales(ctx context.Context) ([]*SaleAccount, error)
	Close() error
}

type balanceKey struct {
	owner solana.PublicKey
	mint  solana.PublicKey
}

// LocalStorage provides an in-memory implementation of the account store.
type LocalStorage struct {
	mu        sync.RWMutex
	sales     map[solana.PublicKey]*SaleAccount
	balances  map[balanceKey]uint64
	processed map[solana.Signature]struct{}
}

// NewLocalStorage instantiates a new LocalStorage with empty maps.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		sales:     map[solana.PublicKey]*SaleAccount{},
		balances:  map[balanceKey]uint64{},
		processed: map[solana.Signature]struct{}{},
	}
}

// Update stages writes in a scratch transaction and applies them only when fn
// succeeds.
func (l *LocalStorage) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &localTx{
		base:      l,
		sales:     map[solana.PublicKey]*SaleAccount{},
		balances:  map[balanceKey]uint64{},
		processed: map[solana.Signature]struct{}{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	for addr, sale := range tx.sales {
		l.sales[addr] = sale
	}
	for key, amount := range tx.balances {
		l.balances[key] = amount
	}
	for sig := range tx.processed {
		l.processed[sig] = struct{}{}
	}
	return nil
}

// View runs fn against a read-only transaction.
func (l *LocalStorage) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(&localTx{base: l, readOnly: true})
}

// ListSales retrieves all sales from the local storage, ordered by creation
// time and then by raw address bytes.
func (l *LocalStorage) ListSales(ctx context.Context) ([]*SaleAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	sales := make([]*SaleAccount, 0, len(l.sales))
	for _, s := range l.sales {
		sales = append(sales, s.Clone())
	}
	sort.Slice(sales, func(i, j int) bool {
		if sales[i].CreatedAt == sales[j].CreatedAt {
			return bytes.Compare(sales[i].Address[:], sales[j].Address[:]) < 0
		}
		return sales[i].CreatedAt < sales[j].CreatedAt
	})
	return sales, nil
}

func (l *LocalStorage) Close() error { return nil }

type localTx struct {
	base      *LocalStorage
	readOnly  bool
	sales     map[solana.PublicKey]*SaleAccount
	balances  map[balanceKey]uint64
	processed map[solana.Signature]struct{}
}

func (t *localTx) Sale(address solana.PublicKey) (*SaleAccount, error) {
	if s, ok := t.sales[address]; ok {
		return s.Clone(), nil
	}
	s, ok := t.base.sales[address]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (t *localTx) PutSale(sale *SaleAccount) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.sales[sale.Address] = sale.Clone()
	return nil
}

func (t *localTx) Balance(owner, mint solana.PublicKey) (uint64, error) {
	key := balanceKey{owner: owner, mint: mint}
	if amount, ok := t.balances[key]; ok {
		return amount, nil
	}
	return t.base.balances[key], nil
}

func (t *localTx) SetBalance(owner, mint solana.PublicKey, amount uint64) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.balances[balanceKey{owner: owner, mint: mint}] = amount
	return nil
}

func (t *localTx) Processed(sig solana.Signature) (bool, error) {
	if _, ok := t.processed[sig]; ok {
		return true, nil
	}
	_, ok := t.base.processed[sig]
	return ok, nil
}

func (t *localTx) MarkProcessed(sig solana.Signature) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.processed[sig] = struct{}{}
	return nil
}
