package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Service provides the settlement operations on top of a Storage backend.
// Each call runs inside a single Storage.Update so a failure never leaves
// partial balances behind.
type Service struct {
	storage Storage
	engine  *Engine
	logger  *zap.Logger
	emitter Emitter
}

// NewService creates a new Service.
func NewService(storage Storage, engine *Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if engine == nil {
		engine = NewEngine(DefaultProgramID)
	}

	return &Service{
		storage: storage,
		engine:  engine,
		logger:  logger,
		emitter: NoopEmitter{},
	}
}

// SetEmitter configures where committed events go. Passing nil discards them.
func (s *Service) SetEmitter(emitter Emitter) {
	if emitter == nil {
		s.emitter = NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// Engine exposes the settlement engine, mainly for its program id.
func (s *Service) Engine() *Engine { return s.engine }

// claim records txID as processed inside tx. A zero id is never recorded.
func claim(tx Tx, txID solana.Signature) error {
	if txID == (solana.Signature{}) {
		return nil
	}
	seen, err := tx.Processed(txID)
	if err != nil {
		return fmt.Errorf("check processed: %w", err)
	}
	if seen {
		return wrapf(ErrDuplicateTransaction, "%s", txID)
	}
	return tx.MarkProcessed(txID)
}

func (s *Service) execute(ctx context.Context, op string, txID solana.Signature, fn func(tx Tx) (*Outcome, error)) (*Outcome, error) {
	var out *Outcome
	err := s.storage.Update(ctx, func(tx Tx) error {
		if err := claim(tx, txID); err != nil {
			return err
		}
		var err error
		out, err = fn(tx)
		return err
	})
	if err != nil {
		if _, ok := AsError(err); ok {
			s.logger.Info("operation rejected", zap.String("op", op), zap.Error(err))
		} else {
			s.logger.Error("operation failed", zap.String("op", op), zap.Error(err))
		}
		return nil, err
	}
	for _, evt := range out.Events {
		s.emitter.Emit(evt)
	}
	return out, nil
}

// Initialize creates a new sale.
func (s *Service) Initialize(ctx context.Context, p InitializeParams) (*SaleAccount, error) {
	out, err := s.execute(ctx, "initialize", p.TxID, func(tx Tx) (*Outcome, error) {
		return s.engine.Initialize(tx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("sale initialized",
		zap.String("sale", out.Sale.Address.String()),
		zap.String("authority", out.Sale.Authority.String()),
		zap.Uint64("quantity", out.Sale.QuantityAvailable),
		zap.Uint64("price_per_unit", out.Sale.PricePerUnit),
	)
	return out.Sale, nil
}

// Deposit adds inventory to an active sale.
func (s *Service) Deposit(ctx context.Context, p DepositParams) (*SaleAccount, error) {
	out, err := s.execute(ctx, "deposit", p.TxID, func(tx Tx) (*Outcome, error) {
		return s.engine.Deposit(tx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("sale deposit",
		zap.String("sale", out.Sale.Address.String()),
		zap.Uint64("amount", p.Amount),
		zap.Uint64("quantity", out.Sale.QuantityAvailable),
	)
	return out.Sale, nil
}

// Purchase exchanges payment for tokens.
func (s *Service) Purchase(ctx context.Context, p PurchaseParams) (*SaleAccount, *PurchaseRecord, error) {
	out, err := s.execute(ctx, "purchase", p.TxID, func(tx Tx) (*Outcome, error) {
		return s.engine.Purchase(tx, p)
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("sale purchase",
		zap.String("sale", out.Sale.Address.String()),
		zap.String("buyer", p.Buyer.String()),
		zap.Uint64("quantity", out.Purchase.Quantity),
		zap.Uint64("cost", out.Purchase.Cost),
	)
	return out.Sale, out.Purchase, nil
}

// Close ends a sale and returns the remaining inventory.
func (s *Service) Close(ctx context.Context, p CloseParams) (*SaleAccount, error) {
	out, err := s.execute(ctx, "close", p.TxID, func(tx Tx) (*Outcome, error) {
		return s.engine.Close(tx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("sale closed", zap.String("sale", out.Sale.Address.String()))
	return out.Sale, nil
}

// Fund credits owner with amount of mint. It stands in for the token
// program's mint instruction on local networks and in tests.
func (s *Service) Fund(ctx context.Context, owner, mint solana.PublicKey, amount uint64) error {
	return s.storage.Update(ctx, func(tx Tx) error {
		balance, err := tx.Balance(owner, mint)
		if err != nil {
			return err
		}
		credited, err := checkedAdd(balance, amount)
		if err != nil {
			return err
		}
		return tx.SetBalance(owner, mint, credited)
	})
}

// Grant is one seeded balance credit.
type Grant struct {
	Owner  solana.PublicKey
	Mint   solana.PublicKey
	Amount uint64
}

// Seed credits every grant in one update and records id as processed, so a
// seed is applied at most once per ledger. It reports whether the grants were
// applied; false means id was already recorded and nothing changed.
func (s *Service) Seed(ctx context.Context, id solana.Signature, grants []Grant) (bool, error) {
	if id == (solana.Signature{}) {
		return false, errors.New("seed: empty id")
	}
	applied := false
	err := s.storage.Update(ctx, func(tx Tx) error {
		seen, err := tx.Processed(id)
		if err != nil {
			return fmt.Errorf("check seed: %w", err)
		}
		if seen {
			return nil
		}
		for _, g := range grants {
			balance, err := tx.Balance(g.Owner, g.Mint)
			if err != nil {
				return err
			}
			credited, err := checkedAdd(balance, g.Amount)
			if err != nil {
				return fmt.Errorf("seed balance for %s: %w", g.Owner, err)
			}
			if err := tx.SetBalance(g.Owner, g.Mint, credited); err != nil {
				return err
			}
		}
		if err := tx.MarkProcessed(id); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// GetSale returns the sale stored at address.
func (s *Service) GetSale(ctx context.Context, address solana.PublicKey) (*SaleAccount, error) {
	var sale *SaleAccount
	err := s.storage.View(ctx, func(tx Tx) error {
		var err error
		sale, err = tx.Sale(address)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, wrapf(ErrAccountNotFound, "%s", address)
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Balance returns owner's ledger balance of mint.
func (s *Service) Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	var amount uint64
	err := s.storage.View(ctx, func(tx Tx) error {
		var err error
		amount, err = tx.Balance(owner, mint)
		return err
	})
	return amount, err
}

// SearchSales filters sales by authority and status, either of which may be
// empty, and summarises the matches.
func (s *Service) SearchSales(ctx context.Context, authority, status string) ([]*SaleAccount, SalesMetadata, error) {
	var (
		authorityKey solana.PublicKey
		statusFilter Status
	)
	if authority != "" {
		key, err := solana.PublicKeyFromBase58(authority)
		if err != nil {
			return nil, SalesMetadata{}, fmt.Errorf("invalid authority %q: %w", authority, err)
		}
		authorityKey = key
	}
	if status != "" {
		parsed, err := ParseStatus(status)
		if err != nil {
			s.logger.Warn("invalid status filter provided", zap.String("status_filter", status))
			return nil, SalesMetadata{}, err
		}
		statusFilter = parsed
	}

	allSales, err := s.storage.ListSales(ctx)
	if err != nil {
		s.logger.Error("failed to list sales from storage", zap.Error(err))
		return nil, SalesMetadata{}, fmt.Errorf("failed to retrieve sales: %w", err)
	}

	filtered := make([]*SaleAccount, 0)
	metadata := SalesMetadata{}
	for _, sale := range allSales {
		if authority != "" && !sale.Authority.Equals(authorityKey) {
			continue
		}
		if status != "" && sale.Status != statusFilter {
			continue
		}
		filtered = append(filtered, sale)

		metadata.Quantity++
		metadata.TotalAvailable += sale.QuantityAvailable
		metadata.TotalSold += sale.TotalSold
		switch sale.Status {
		case StatusActive:
			metadata.Active++
		case StatusClosed:
			metadata.Closed++
		}
	}

	s.logger.Debug("sales search completed",
		zap.String("authority_filter", authority),
		zap.String("status_filter", status),
		zap.Int("results_count", len(filtered)),
	)
	return filtered, metadata, nil
}
