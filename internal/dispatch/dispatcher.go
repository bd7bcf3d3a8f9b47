package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"token_sales/internal/sales"
)

// Recorder observes dispatch outcomes, typically for metrics.
type Recorder interface {
	Observe(instruction, outcome string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) Observe(string, string, time.Duration) {}

// Result is returned to the submitter of a successful transaction.
type Result struct {
	Signature   string                `json:"signature"`
	Instruction string                `json:"instruction"`
	Sale        *sales.SaleAccount    `json:"sale"`
	Purchase    *sales.PurchaseRecord `json:"purchase,omitempty"`
}

// Dispatcher verifies signed transactions and runs the matching settlement
// operation exactly once.
type Dispatcher struct {
	service  *sales.Service
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// New creates a Dispatcher in front of service.
func New(service *sales.Service, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		service:  service,
		logger:   logger,
		tracer:   otel.Tracer("token_sales/dispatch"),
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch verifies tx and executes its instruction. Verification failures
// return before the settlement engine is reached.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *Transaction) (*Result, error) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "dispatch")
	defer span.End()

	instruction := "unknown"
	res, err := d.dispatch(ctx, tx, &instruction)

	outcome := "ok"
	if err != nil {
		outcome = "internal"
		if serr, ok := sales.AsError(err); ok {
			outcome = serr.Name
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(
		attribute.String("sale.instruction", instruction),
		attribute.String("sale.outcome", outcome),
	)
	d.recorder.Observe(instruction, outcome, time.Since(start))
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, tx *Transaction, name *string) (*Result, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: empty transaction", sales.ErrMalformedInstruction)
	}
	ins, err := DecodeInstruction(tx.Data)
	if err != nil {
		return nil, err
	}
	*name = ins.Kind().String()
	if err := d.verify(ins, tx); err != nil {
		d.logger.Warn("transaction rejected",
			zap.String("instruction", *name),
			zap.String("signer", tx.Signer.String()),
			zap.Error(err),
		)
		return nil, err
	}

	res := &Result{Signature: tx.ID(), Instruction: *name}
	signer, sale := tx.Accounts[0], tx.Accounts[1]
	switch v := ins.(type) {
	case Initialize:
		res.Sale, err = d.service.Initialize(ctx, sales.InitializeParams{
			TxID:            tx.Signature,
			Authority:       signer,
			TokenMint:       tx.Accounts[2],
			PaymentMint:     tx.Accounts[3],
			PricePerUnit:    v.PricePerUnit,
			InitialQuantity: v.InitialQuantity,
			EndTime:         v.EndTime,
		})
	case Deposit:
		res.Sale, err = d.service.Deposit(ctx, sales.DepositParams{
			TxID:      tx.Signature,
			Sale:      sale,
			Authority: signer,
			Amount:    v.Amount,
		})
	case Purchase:
		res.Sale, res.Purchase, err = d.service.Purchase(ctx, sales.PurchaseParams{
			TxID:     tx.Signature,
			Sale:     sale,
			Buyer:    signer,
			Quantity: v.Quantity,
		})
	case Close:
		res.Sale, err = d.service.Close(ctx, sales.CloseParams{
			TxID:      tx.Signature,
			Sale:      sale,
			Authority: signer,
		})
	default:
		return nil, fmt.Errorf("%w: %T", sales.ErrUnknownInstruction, ins)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// verify checks the account layout and the signer binding of tx.
func (d *Dispatcher) verify(ins Instruction, tx *Transaction) error {
	if want := AccountCount(ins.Kind()); len(tx.Accounts) != want {
		return fmt.Errorf("%w: %s takes %d accounts, got %d", sales.ErrAccountMismatch, ins.Kind(), want, len(tx.Accounts))
	}
	if !tx.Accounts[0].Equals(tx.Signer) {
		return fmt.Errorf("%w: %s must be signed by %s", sales.ErrMissingSignature, ins.Kind(), tx.Accounts[0])
	}
	if !tx.Verify() {
		return sales.ErrInvalidSignature
	}
	if ins.Kind() == KindInitialize {
		want, _, err := sales.DeriveSaleAddress(d.service.Engine().ProgramID(), tx.Accounts[0], tx.Accounts[2])
		if err != nil {
			return fmt.Errorf("derive sale address: %w", err)
		}
		if !want.Equals(tx.Accounts[1]) {
			return fmt.Errorf("%w: sale account %s, expected %s", sales.ErrAccountMismatch, tx.Accounts[1], want)
		}
	}
	return nil
}
