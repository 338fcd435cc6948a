// Package secretnonce holds the secret half of a nonce commitment as an
// opaque encoded pair k1 ‖ k2. Nonce stores move it around without knowing
// the curve; only the signer turns it back into scalars.
package secretnonce

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned for an encoding that cannot hold two equal-length
// scalars.
var ErrMalformed = errors.New("secretnonce: malformed nonce pair")

// Pair is one encoded secret nonce pair.
type Pair struct {
	data []byte
	half int
}

// New copies the canonical encodings of k1 and k2 into a Pair.
func New(k1, k2 []byte) (*Pair, error) {
	if len(k1) == 0 || len(k1) != len(k2) {
		return nil, fmt.Errorf("%w: scalar lengths %d and %d", ErrMalformed, len(k1), len(k2))
	}
	data := make([]byte, 0, 2*len(k1))
	data = append(data, k1...)
	data = append(data, k2...)
	return &Pair{data: data, half: len(k1)}, nil
}

// FromBytes parses the output of Bytes. The input is copied.
func FromBytes(data []byte) (*Pair, error) {
	if len(data) == 0 || len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	return &Pair{data: append([]byte(nil), data...), half: len(data) / 2}, nil
}

// Bytes returns a copy of k1 ‖ k2 for persistence.
func (p *Pair) Bytes() []byte {
	return append([]byte(nil), p.data...)
}

// Split returns copies of the two scalar encodings.
func (p *Pair) Split() (k1, k2 []byte) {
	return append([]byte(nil), p.data[:p.half]...), append([]byte(nil), p.data[p.half:]...)
}

// Zeroize clears the pair in place. A zeroized pair decodes to zero scalars,
// which every curve rejects.
func (p *Pair) Zeroize() {
	for i := range p.data {
		p.data[i] = 0
	}
}

// IsZero reports whether the pair has been cleared
func (p *Pair) IsZero() bool {
	for _, b := range p.data {
		if b != 0 {
			return false
		}
	}
	return true
}
