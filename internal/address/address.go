// Package address parses and canonicalizes 20-byte Ethereum addresses.
// The canonical form is the EIP-55 checksum encoding, so two inputs that
// differ only in letter case always produce the same Address.
package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalid is returned when input is not 40 hex characters with an
// optional 0x prefix.
var ErrInvalid = errors.New("invalid address")

const didPrefix = "did:ethr:"

// Address is a validated 20-byte address.
type Address struct {
	raw common.Address
}

// Parse validates s and returns its canonical Address. s must be exactly
// 40 hex characters after an optional 0x prefix; callers trim input first.
func Parse(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return Address{raw: common.HexToAddress(s)}, nil
}

// MustParse is Parse for constants known to be valid. It panics otherwise.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Hex returns the 0x-prefixed EIP-55 checksum form.
func (a Address) Hex() string {
	return a.raw.Hex()
}

// Lower returns the 0x-prefixed lowercase form.
func (a Address) Lower() string {
	return strings.ToLower(a.raw.Hex())
}

// Bytes returns a copy of the raw 20 address bytes.
func (a Address) Bytes() []byte {
	return a.raw.Bytes()
}

// Short returns the first 6 and last 4 characters of the canonical form,
// joined by an ellipsis.
func (a Address) Short() string {
	h := a.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// DID returns the did:ethr identifier for the address.
func (a Address) DID() string {
	return didPrefix + a.Hex()
}

func (a Address) String() string {
	return a.Hex()
}

// MarshalText encodes the canonical form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText parses and validates text.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
