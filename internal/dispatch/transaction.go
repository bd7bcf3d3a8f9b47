package dispatch

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"token_sales/internal/sales"
)

// Transaction is a signed request to run one instruction. Accounts[0] is the
// account whose signature the instruction requires.
type Transaction struct {
	Signer    solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
	Nonce     uint64
	Signature solana.Signature
}

// Message returns the bytes covered by the signature:
// nonce (u64 LE) | account count (u8) | accounts | instruction data.
func (t *Transaction) Message() []byte {
	msg := make([]byte, 0, 8+1+32*len(t.Accounts)+len(t.Data))
	msg = binary.LittleEndian.AppendUint64(msg, t.Nonce)
	msg = append(msg, byte(len(t.Accounts)))
	for _, acc := range t.Accounts {
		msg = append(msg, acc.Bytes()...)
	}
	return append(msg, t.Data...)
}

// Sign sets Signer and Signature from key.
func (t *Transaction) Sign(key solana.PrivateKey) error {
	t.Signer = key.PublicKey()
	sig, err := key.Sign(t.Message())
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	t.Signature = sig
	return nil
}

// Verify reports whether Signature is Signer's signature over Message.
func (t *Transaction) Verify() bool {
	return t.Signature.Verify(t.Signer, t.Message())
}

// ID is the transaction identifier returned to submitters.
func (t *Transaction) ID() string { return t.Signature.String() }

// Envelope is the JSON form of a Transaction on the submission channel.
type Envelope struct {
	Instruction string   `json:"instruction"`
	Accounts    []string `json:"accounts"`
	Signer      string   `json:"signer"`
	Nonce       uint64   `json:"nonce"`
	Signature   string   `json:"signature"`
}

// Envelope converts t to its wire form.
func (t *Transaction) Envelope() Envelope {
	accounts := make([]string, len(t.Accounts))
	for i, acc := range t.Accounts {
		accounts[i] = acc.String()
	}
	return Envelope{
		Instruction: base64.StdEncoding.EncodeToString(t.Data),
		Accounts:    accounts,
		Signer:      t.Signer.String(),
		Nonce:       t.Nonce,
		Signature:   t.Signature.String(),
	}
}

// Transaction parses the wire form. Encoding problems are reported as
// ErrMalformedInstruction.
func (e Envelope) Transaction() (*Transaction, error) {
	data, err := base64.StdEncoding.DecodeString(e.Instruction)
	if err != nil {
		return nil, fmt.Errorf("%w: instruction: %v", sales.ErrMalformedInstruction, err)
	}
	if len(e.Accounts) > 255 {
		return nil, fmt.Errorf("%w: %d accounts", sales.ErrAccountMismatch, len(e.Accounts))
	}
	accounts := make([]solana.PublicKey, len(e.Accounts))
	for i, raw := range e.Accounts {
		key, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: account %d: %v", sales.ErrMalformedInstruction, i, err)
		}
		accounts[i] = key
	}
	signer, err := solana.PublicKeyFromBase58(e.Signer)
	if err != nil {
		return nil, fmt.Errorf("%w: signer: %v", sales.ErrMalformedInstruction, err)
	}
	sig, err := solana.SignatureFromBase58(e.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", sales.ErrInvalidSignature, err)
	}
	return &Transaction{
		Signer:    signer,
		Accounts:  accounts,
		Data:      data,
		Nonce:     e.Nonce,
		Signature: sig,
	}, nil
}

func newTransaction(ins Instruction, accounts []solana.PublicKey, nonce uint64) (*Transaction, error) {
	data, err := EncodeInstruction(ins)
	if err != nil {
		return nil, err
	}
	return &Transaction{Accounts: accounts, Data: data, Nonce: nonce}, nil
}

// NewInitializeTransaction builds an unsigned initialize transaction and
// returns it with the derived sale address.
func NewInitializeTransaction(programID, authority, tokenMint, paymentMint solana.PublicKey, args Initialize, nonce uint64) (*Transaction, solana.PublicKey, error) {
	sale, _, err := sales.DeriveSaleAddress(programID, authority, tokenMint)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive sale address: %w", err)
	}
	tx, err := newTransaction(args, []solana.PublicKey{authority, sale, tokenMint, paymentMint}, nonce)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return tx, sale, nil
}

// NewDepositTransaction builds an unsigned deposit transaction.
func NewDepositTransaction(authority, sale solana.PublicKey, amount, nonce uint64) (*Transaction, error) {
	return newTransaction(Deposit{Amount: amount}, []solana.PublicKey{authority, sale}, nonce)
}

// NewPurchaseTransaction builds an unsigned purchase transaction.
func NewPurchaseTransaction(buyer, sale solana.PublicKey, quantity, nonce uint64) (*Transaction, error) {
	return newTransaction(Purchase{Quantity: quantity}, []solana.PublicKey{buyer, sale}, nonce)
}

// NewCloseTransaction builds an unsigned close transaction.
func NewCloseTransaction(authority, sale solana.PublicKey, nonce uint64) (*Transaction, error) {
	return newTransaction(Close{}, []solana.PublicKey{authority, sale}, nonce)
}
