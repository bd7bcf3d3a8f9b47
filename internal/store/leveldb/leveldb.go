// Package leveldb persists the account store in a LevelDB database.
package leveldb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"token_sales/internal/sales"
)

var (
	salePrefix      = []byte("sale/")
	balancePrefix   = []byte("bal/")
	processedPrefix = []byte("sig/")
)

func saleKey(address solana.PublicKey) []byte {
	return append(append([]byte{}, salePrefix...), address.Bytes()...)
}

func balanceKey(owner, mint solana.PublicKey) []byte {
	key := append(append([]byte{}, balancePrefix...), owner.Bytes()...)
	return append(key, mint.Bytes()...)
}

func processedKey(sig solana.Signature) []byte {
	return append(append([]byte{}, processedPrefix...), sig[:]...)
}

// Store is a persistent account store using LevelDB. Sale records are kept
// in their fixed binary layout.
type Store struct {
	mu sync.RWMutex
	db *leveldb.DB
}

// Open creates or opens a LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Update stages writes in memory and commits them as one synced batch.
func (s *Store) Update(ctx context.Context, fn func(tx sales.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &ldbTx{db: s.db, writes: map[string][]byte{}}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.writes) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for key, value := range tx.writes {
		batch.Put([]byte(key), value)
	}
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// View runs fn against committed state. Writes fail with sales.ErrReadOnly.
func (s *Store) View(ctx context.Context, fn func(tx sales.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&ldbTx{db: s.db, readOnly: true})
}

// ListSales returns every sale ordered by creation time, then address.
func (s *Store) ListSales(ctx context.Context) ([]*sales.SaleAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	iter := s.db.NewIterator(util.BytesPrefix(salePrefix), nil)
	defer iter.Release()

	var out []*sales.SaleAccount
	for iter.Next() {
		address := solana.PublicKeyFromBytes(iter.Key()[len(salePrefix):])
		sale, err := sales.DecodeSaleAccount(address, iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode sale %s: %w", address, err)
		}
		out = append(out, sale)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type ldbTx struct {
	db       *leveldb.DB
	writes   map[string][]byte
	readOnly bool
}

func (t *ldbTx) get(key []byte) ([]byte, bool, error) {
	if value, ok := t.writes[string(key)]; ok {
		return value, true, nil
	}
	value, err := t.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *ldbTx) put(key, value []byte) error {
	if t.readOnly {
		return sales.ErrReadOnly
	}
	t.writes[string(key)] = value
	return nil
}

func (t *ldbTx) Sale(address solana.PublicKey) (*sales.SaleAccount, error) {
	data, ok, err := t.get(saleKey(address))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sales.ErrNotFound
	}
	return sales.DecodeSaleAccount(address, data)
}

func (t *ldbTx) PutSale(sale *sales.SaleAccount) error {
	data, err := sales.EncodeSaleAccount(sale)
	if err != nil {
		return err
	}
	return t.put(saleKey(sale.Address), data)
}

func (t *ldbTx) Balance(owner, mint solana.PublicKey) (uint64, error) {
	data, ok, err := t.get(balanceKey(owner, mint))
	if err != nil || !ok {
		return 0, err
	}
	return sales.DecodeBalance(data)
}

func (t *ldbTx) SetBalance(owner, mint solana.PublicKey, amount uint64) error {
	data, err := sales.EncodeBalance(amount)
	if err != nil {
		return err
	}
	return t.put(balanceKey(owner, mint), data)
}

func (t *ldbTx) Processed(sig solana.Signature) (bool, error) {
	_, ok, err := t.get(processedKey(sig))
	return ok, err
}

func (t *ldbTx) MarkProcessed(sig solana.Signature) error {
	return t.put(processedKey(sig), []byte{1})
}

var _ sales.Storage = (*Store)(nil)
