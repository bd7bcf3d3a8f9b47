package config

import (
	"crypto/sha512"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

// SeedBalance credits Owner with Amount of Mint at startup. Local networks
// use it in place of the token program's mint instruction.
type SeedBalance struct {
	Owner  solana.PublicKey
	Mint   solana.PublicKey
	Amount uint64
}

// Seed is a parsed seed file. ID is derived from the file contents so a
// ledger can tell whether this exact file was already applied.
type Seed struct {
	ID       solana.Signature
	Balances []SeedBalance
}

type seedFile struct {
	Balances []struct {
		Owner  string `yaml:"owner"`
		Mint   string `yaml:"mint"`
		Amount uint64 `yaml:"amount"`
	} `yaml:"balances"`
}

// LoadSeed parses a YAML seed file of the form
//
//	balances:
//	  - owner: <base58>
//	    mint: <base58>
//	    amount: 1000
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}

	out := &Seed{
		ID:       solana.Signature(sha512.Sum512(append([]byte("token_sales/seed\x00"), raw...))),
		Balances: make([]SeedBalance, 0, len(file.Balances)),
	}
	for i, entry := range file.Balances {
		owner, err := solana.PublicKeyFromBase58(entry.Owner)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: owner: %w", i, err)
		}
		mint, err := solana.PublicKeyFromBase58(entry.Mint)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: mint: %w", i, err)
		}
		out.Balances = append(out.Balances, SeedBalance{Owner: owner, Mint: mint, Amount: entry.Amount})
	}
	return out, nil
}
