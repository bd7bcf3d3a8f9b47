package sales

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Status is the lifecycle state of a sale account.
type Status uint8

const (
	StatusUninitialized Status = iota
	StatusActive
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusUninitialized, StatusActive, StatusClosed:
		return true
	default:
		return false
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus maps the textual form used by the HTTP surface back to a Status.
func ParseStatus(raw string) (Status, error) {
	switch raw {
	case "uninitialized":
		return StatusUninitialized, nil
	case "active":
		return StatusActive, nil
	case "closed":
		return StatusClosed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// SaleAccount describes one token listing. Authority, mints, vault and
// CreatedAt never change once the sale is initialized.
type SaleAccount struct {
	Address           solana.PublicKey `json:"address"`
	Authority         solana.PublicKey `json:"authority"`
	TokenMint         solana.PublicKey `json:"token_mint"`
	PaymentMint       solana.PublicKey `json:"payment_mint"`
	Vault             solana.PublicKey `json:"vault"`
	PricePerUnit      uint64           `json:"price_per_unit"`
	QuantityAvailable uint64           `json:"quantity_available"`
	TotalDeposited    uint64           `json:"total_deposited"`
	TotalSold         uint64           `json:"total_sold"`
	Proceeds          uint64           `json:"proceeds"`
	CreatedAt         int64            `json:"created_at"`
	EndTime           int64            `json:"end_time"`
	ClosedAt          int64            `json:"closed_at"`
	Status            Status           `json:"status"`
	Bump              uint8            `json:"bump"`
	VaultBump         uint8            `json:"vault_bump"`
}

// Clone returns a copy of the sale so callers can mutate it without touching
// the stored instance.
func (s *SaleAccount) Clone() *SaleAccount {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Expired reports whether the sale has an end time at or before now.
func (s *SaleAccount) Expired(now int64) bool {
	return s.EndTime != 0 && now >= s.EndTime
}

// PurchaseRecord is derived per purchase and never stored on its own.
type PurchaseRecord struct {
	Sale         solana.PublicKey `json:"sale"`
	Buyer        solana.PublicKey `json:"buyer"`
	Quantity     uint64           `json:"quantity"`
	PricePerUnit uint64           `json:"price_per_unit"`
	Cost         uint64           `json:"cost"`
	Timestamp    int64            `json:"timestamp"`
}

// InitializeParams are the inputs of Initialize.
type InitializeParams struct {
	TxID            solana.Signature
	Authority       solana.PublicKey
	TokenMint       solana.PublicKey
	PaymentMint     solana.PublicKey
	PricePerUnit    uint64
	InitialQuantity uint64
	EndTime         int64
}

// DepositParams are the inputs of Deposit.
type DepositParams struct {
	TxID      solana.Signature
	Sale      solana.PublicKey
	Authority solana.PublicKey
	Amount    uint64
}

// PurchaseParams are the inputs of Purchase.
type PurchaseParams struct {
	TxID     solana.Signature
	Sale     solana.PublicKey
	Buyer    solana.PublicKey
	Quantity uint64
}

// CloseParams are the inputs of Close.
type CloseParams struct {
	TxID      solana.Signature
	Sale      solana.PublicKey
	Authority solana.PublicKey
}

// SalesMetadata summarises a search result.
type SalesMetadata struct {
	Quantity       int    `json:"quantity"`
	Active         int    `json:"active"`
	Closed         int    `json:"closed"`
	TotalAvailable uint64 `json:"total_available"`
	TotalSold      uint64 `json:"total_sold"`
}
