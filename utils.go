package schnorrkel

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"hash"

	"golang.org/x/crypto/sha3"
)

// maxKeyAttempts bounds rejection sampling against a source that keeps
// producing out-of-range values.
const maxKeyAttempts = 8

// HashFunction defines the interface for hash functions used by the protocol
type HashFunction interface {
	hash.Hash
}

// Keccak256Hasher returns the legacy Keccak-256 used by the EVM
func Keccak256Hasher() HashFunction {
	return sha3.NewLegacyKeccak256()
}

// Keccak256 hashes the concatenation of data with legacy Keccak-256.
func Keccak256(data ...[]byte) []byte {
	h := Keccak256Hasher()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// HashMessage maps an arbitrary message onto the 32-byte digest that signers
// sign. Callers that already hold a digest (a user-operation hash) pass it
// straight to Sign.
func HashMessage(message []byte) []byte {
	return Keccak256(message)
}

// keccakToScalar hashes data with Keccak-256 and reduces the digest mod n.
func keccakToScalar(curve Curve, data ...[]byte) (Scalar, error) {
	return curve.ScalarFromUniformBytes(Keccak256(data...))
}

// sha256ToScalar hashes data with SHA-256 and reduces the digest mod n.
func sha256ToScalar(curve Curve, data ...[]byte) (Scalar, error) {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return curve.ScalarFromUniformBytes(h.Sum(nil))
}

// randomScalar draws a non-zero scalar from the curve's entropy source using
// rejection sampling. Read failures surface as ErrRandomnessGeneration; a
// source that never yields an in-range value surfaces as ErrInvalidPrivateKey.
func randomScalar(curve Curve) (Scalar, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		s, err := curve.ScalarRandom()
		if err != nil {
			if errors.Is(err, ErrInvalidScalar) {
				continue
			}
			return nil, ErrRandomnessGeneration.WithCause(err)
		}
		if s.IsZero() {
			continue
		}
		return s, nil
	}
	return nil, ErrInvalidPrivateKey.WithDetails("%d draws out of range", maxKeyAttempts)
}

// NonceGeneration draws session nonces from a curve engine
type NonceGeneration struct {
	curve Curve
}

// NewNonceGeneration creates a new nonce generator
func NewNonceGeneration(curve Curve) *NonceGeneration {
	return &NonceGeneration{curve: curve}
}

// GenerateNonce generates a random non-zero nonce
func (ng *NonceGeneration) GenerateNonce() (Scalar, error) {
	return randomScalar(ng.curve)
}

// SecureCompare performs constant-time comparison of byte slices
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// ZeroizeBytes securely clears a byte slice
func ZeroizeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// ZeroizeScalarSlice securely clears a slice of scalars
func ZeroizeScalarSlice(scalars []Scalar) {
	for _, scalar := range scalars {
		if scalar != nil {
			scalar.Zeroize()
		}
	}
}

// sumPoints adds every point to the curve identity.
func sumPoints(curve Curve, points []Point) Point {
	acc := curve.PointIdentity()
	for _, p := range points {
		acc = acc.Add(p)
	}
	return acc
}
