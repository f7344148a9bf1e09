package identicon

import (
	"github.com/zarlcorp/civicid/internal/address"
	"golang.org/x/crypto/sha3"
)

// streamSpan bounds stream offsets. Offsets wrap modulo streamSpan so a
// two-nibble window starting at any offset stays inside the 64-nibble digest.
const streamSpan = 60

// Digest is the Keccak-256 hash of an address's 20 raw bytes.
type Digest [32]byte

// Sum hashes the raw bytes of a. Letter case of the original input never
// reaches the hash.
func Sum(a address.Address) Digest {
	h := sha3.NewLegacyKeccak256()
	h.Write(a.Bytes())

	var d Digest
	h.Sum(d[:0])
	return d
}

// nibble returns the n-th hex digit of the digest, most significant first.
func (d Digest) nibble(n int) byte {
	b := d[n/2]
	if n%2 == 0 {
		return b >> 4
	}
	return b & 0x0f
}

// At returns the byte formed by the two hex digits starting at digit
// offset k mod 60. Consecutive offsets overlap by one digit.
func (d Digest) At(k int) byte {
	k %= streamSpan
	if k < 0 {
		k += streamSpan
	}
	return d.nibble(k)<<4 | d.nibble(k+1)
}

// Hue is the first three digest bytes as a big-endian integer mod 360.
func (d Digest) Hue() int {
	v := int(d[0])<<16 | int(d[1])<<8 | int(d[2])
	return v % 360
}
