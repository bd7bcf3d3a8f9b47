package dispatch

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"token_sales/internal/sales"
)

// Kind tags the four settlement instructions.
type Kind uint8

const (
	KindInitialize Kind = iota + 1
	KindDeposit
	KindPurchase
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindInitialize:
		return "initialize"
	case KindDeposit:
		return "deposit"
	case KindPurchase:
		return "purchase"
	case KindClose:
		return "close"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Instruction is one of Initialize, Deposit, Purchase or Close. The set is
// closed: the unexported method keeps other packages from adding variants.
type Instruction interface {
	Kind() Kind
	isInstruction()
}

// Initialize expects accounts [authority, sale, token mint, payment mint].
type Initialize struct {
	PricePerUnit    uint64
	InitialQuantity uint64
	EndTime         int64
}

// Deposit expects accounts [authority, sale].
type Deposit struct {
	Amount uint64
}

// Purchase expects accounts [buyer, sale].
type Purchase struct {
	Quantity uint64
}

// Close expects accounts [authority, sale].
type Close struct{}

func (Initialize) Kind() Kind { return KindInitialize }
func (Deposit) Kind() Kind    { return KindDeposit }
func (Purchase) Kind() Kind   { return KindPurchase }
func (Close) Kind() Kind      { return KindClose }

func (Initialize) isInstruction() {}
func (Deposit) isInstruction()    {}
func (Purchase) isInstruction()   {}
func (Close) isInstruction()      {}

// AccountCount returns how many accounts an instruction of kind k takes.
func AccountCount(k Kind) int {
	if k == KindInitialize {
		return 4
	}
	return 2
}

func instructionDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

var (
	discriminators = map[Kind][8]byte{
		KindInitialize: instructionDiscriminator("initialize"),
		KindDeposit:    instructionDiscriminator("deposit"),
		KindPurchase:   instructionDiscriminator("purchase"),
		KindClose:      instructionDiscriminator("close"),
	}
	kinds = map[[8]byte]Kind{
		instructionDiscriminator("initialize"):        KindInitialize,
		instructionDiscriminator("init_sale_account"): KindInitialize,
		instructionDiscriminator("deposit"):           KindDeposit,
		instructionDiscriminator("purchase"):          KindPurchase,
		instructionDiscriminator("close"):             KindClose,
	}
)

// EncodeInstruction serialises ins as discriminator followed by Borsh args.
func EncodeInstruction(ins Instruction) ([]byte, error) {
	if ins == nil {
		return nil, fmt.Errorf("encode instruction: nil instruction")
	}
	disc, ok := discriminators[ins.Kind()]
	if !ok {
		return nil, fmt.Errorf("encode instruction: unknown kind %s", ins.Kind())
	}
	buf := bytes.NewBuffer(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(ins); err != nil {
		return nil, fmt.Errorf("encode instruction: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeInstruction is the inverse of EncodeInstruction. Unknown tags fail
// with ErrUnknownInstruction; short or trailing argument bytes fail with
// ErrMalformedInstruction.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", sales.ErrMalformedInstruction, len(data))
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	kind, ok := kinds[disc]
	if !ok {
		return nil, fmt.Errorf("%w: tag %x", sales.ErrUnknownInstruction, disc)
	}

	dec := bin.NewBorshDecoder(data[8:])
	var (
		ins Instruction
		err error
	)
	switch kind {
	case KindInitialize:
		var v Initialize
		err = dec.Decode(&v)
		ins = v
	case KindDeposit:
		var v Deposit
		err = dec.Decode(&v)
		ins = v
	case KindPurchase:
		var v Purchase
		err = dec.Decode(&v)
		ins = v
	case KindClose:
		ins = Close{}
	default:
		return nil, fmt.Errorf("%w: %s", sales.ErrUnknownInstruction, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", sales.ErrMalformedInstruction, kind, err)
	}
	if dec.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", sales.ErrMalformedInstruction, kind, dec.Remaining())
	}
	return ins, nil
}
