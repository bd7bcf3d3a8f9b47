package sales

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// SaleAccountSize is the encoded size of a sale account record.
const SaleAccountSize = 8 + 4*32 + 8*8 + 3

// SaleAccountDiscriminator prefixes every encoded sale account.
var SaleAccountDiscriminator = accountDiscriminator("SaleAccount")

func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// saleLayout is the on-store field order. The address is the storage key and
// is not part of the record.
type saleLayout struct {
	Discriminator     [8]byte
	Authority         solana.PublicKey
	TokenMint         solana.PublicKey
	PaymentMint       solana.PublicKey
	Vault             solana.PublicKey
	PricePerUnit      uint64
	QuantityAvailable uint64
	TotalDeposited    uint64
	TotalSold         uint64
	Proceeds          uint64
	CreatedAt         int64
	EndTime           int64
	ClosedAt          int64
	Status            uint8
	Bump              uint8
	VaultBump         uint8
}

// EncodeSaleAccount serialises a sale into its fixed Borsh layout.
func EncodeSaleAccount(sale *SaleAccount) ([]byte, error) {
	if sale == nil {
		return nil, fmt.Errorf("encode sale account: nil sale")
	}
	layout := saleLayout{
		Discriminator:     SaleAccountDiscriminator,
		Authority:         sale.Authority,
		TokenMint:         sale.TokenMint,
		PaymentMint:       sale.PaymentMint,
		Vault:             sale.Vault,
		PricePerUnit:      sale.PricePerUnit,
		QuantityAvailable: sale.QuantityAvailable,
		TotalDeposited:    sale.TotalDeposited,
		TotalSold:         sale.TotalSold,
		Proceeds:          sale.Proceeds,
		CreatedAt:         sale.CreatedAt,
		EndTime:           sale.EndTime,
		ClosedAt:          sale.ClosedAt,
		Status:            uint8(sale.Status),
		Bump:              sale.Bump,
		VaultBump:         sale.VaultBump,
	}
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(layout); err != nil {
		return nil, fmt.Errorf("encode sale account: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSaleAccount parses a record stored under address.
func DecodeSaleAccount(address solana.PublicKey, data []byte) (*SaleAccount, error) {
	if len(data) != SaleAccountSize {
		return nil, fmt.Errorf("decode sale account: size %d, want %d", len(data), SaleAccountSize)
	}
	var layout saleLayout
	if err := bin.NewBorshDecoder(data).Decode(&layout); err != nil {
		return nil, fmt.Errorf("decode sale account: %w", err)
	}
	if layout.Discriminator != SaleAccountDiscriminator {
		return nil, fmt.Errorf("decode sale account: discriminator mismatch")
	}
	status := Status(layout.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("decode sale account: invalid status %d", layout.Status)
	}
	return &SaleAccount{
		Address:           address,
		Authority:         layout.Authority,
		TokenMint:         layout.TokenMint,
		PaymentMint:       layout.PaymentMint,
		Vault:             layout.Vault,
		PricePerUnit:      layout.PricePerUnit,
		QuantityAvailable: layout.QuantityAvailable,
		TotalDeposited:    layout.TotalDeposited,
		TotalSold:         layout.TotalSold,
		Proceeds:          layout.Proceeds,
		CreatedAt:         layout.CreatedAt,
		EndTime:           layout.EndTime,
		ClosedAt:          layout.ClosedAt,
		Status:            status,
		Bump:              layout.Bump,
		VaultBump:         layout.VaultBump,
	}, nil
}

// EncodeBalance serialises a ledger balance.
func EncodeBalance(amount uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(amount); err != nil {
		return nil, fmt.Errorf("encode balance: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBalance parses a ledger balance.
func DecodeBalance(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("decode balance: size %d, want 8", len(data))
	}
	var amount uint64
	if err := bin.NewBorshDecoder(data).Decode(&amount); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	return amount, nil
}
