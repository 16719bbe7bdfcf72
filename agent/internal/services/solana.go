package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var ErrMalformedRecord = errors.New("malformed record")

// ValidateAddress checks that addr is a well-formed account address for chain.
// Only Solana addresses are checked structurally; other chains need a non-empty value.
func ValidateAddress(chain, addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty address", ErrMalformedRecord)
	}
	if !strings.EqualFold(chain, "solana") {
		return nil
	}
	if _, err := solana.PublicKeyFromBase58(addr); err != nil {
		return fmt.Errorf("%w: %s is not a solana public key: %v", ErrMalformedRecord, addr, err)
	}
	return nil
}
