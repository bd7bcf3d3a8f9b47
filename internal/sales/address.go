package sales

import (
	"github.com/gagliardetto/solana-go"
)

const (
	saleSeed  = "token_sale"
	vaultSeed = "token_account"
)

// DefaultProgramID identifies the sale program when no override is configured.
var DefaultProgramID = solana.MustPublicKeyFromBase58("QWXKkZHHuVKooqKnRjdLoEPt8PGrjaFNB6bRURnDx4T")

// DeriveSaleAddress returns the sale account address for an authority/mint
// pair. The derivation allows a single sale per pair.
func DeriveSaleAddress(programID, authority, tokenMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(saleSeed), authority.Bytes(), tokenMint.Bytes()},
		programID,
	)
}

// DeriveVaultAddress returns the escrow vault address owned by a sale.
func DeriveVaultAddress(programID, sale solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(vaultSeed), sale.Bytes()},
		programID,
	)
}
