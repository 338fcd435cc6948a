package schnorrkel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/aa-schnorr/schnorrkel/internal/secretnonce"
)

// PublicNonces is the commitment pair K1 = k1·G, K2 = k2·G a signer
// publishes for exactly one session.
type PublicNonces struct {
	K1 Point
	K2 Point
}

// Bytes returns K1 ‖ K2 in compressed form
func (pn *PublicNonces) Bytes() []byte {
	k1 := pn.K1.CompressedBytes()
	out := make([]byte, 0, 2*len(k1))
	out = append(out, k1...)
	return append(out, pn.K2.CompressedBytes()...)
}

// Fingerprint identifies the commitment in a NonceStore
func (pn *PublicNonces) Fingerprint() string {
	sum := sha256.Sum256(pn.Bytes())
	return hex.EncodeToString(sum[:])
}

// Equal reports whether both commitments hold the same points
func (pn *PublicNonces) Equal(other *PublicNonces) bool {
	if other == nil {
		return false
	}
	return pn.K1.Equal(other.K1) && pn.K2.Equal(other.K2)
}

// PublicNoncesFromBytes parses the output of Bytes.
func PublicNoncesFromBytes(curve Curve, data []byte) (*PublicNonces, error) {
	size := curve.PointSize()
	if len(data) != 2*size {
		return nil, fmt.Errorf("%w: nonce commitment must be %d bytes, got %d", ErrInvalidPointLength, 2*size, len(data))
	}
	k1, err := curve.PointFromBytes(data[:size])
	if err != nil {
		return nil, fmt.Errorf("failed to parse K1: %w", err)
	}
	k2, err := curve.PointFromBytes(data[size:])
	if err != nil {
		return nil, fmt.Errorf("failed to parse K2: %w", err)
	}
	if k1.IsIdentity() || k2.IsIdentity() {
		return nil, fmt.Errorf("%w: nonce commitment at infinity", ErrInvalidPoint)
	}
	return &PublicNonces{K1: k1, K2: k2}, nil
}

// generateNonces draws a fresh secret pair, independent of any key material,
// and returns it encoded together with its public commitment. The scalars
// never leave this package in decoded form.
func generateNonces(curve Curve) (*secretnonce.Pair, *PublicNonces, error) {
	ng := NewNonceGeneration(curve)
	k1, err := ng.GenerateNonce()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate first nonce: %w", err)
	}
	defer k1.Zeroize()
	k2, err := ng.GenerateNonce()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate second nonce: %w", err)
	}
	defer k2.Zeroize()

	g := curve.BasePoint()
	public := &PublicNonces{K1: g.Mul(k1), K2: g.Mul(k2)}
	b1, b2 := k1.Bytes(), k2.Bytes()
	defer ZeroizeBytes(b1)
	defer ZeroizeBytes(b2)
	secret, err := secretnonce.New(b1, b2)
	if err != nil {
		return nil, nil, err
	}
	return secret, public, nil
}

// openNonces decodes a stored pair back into its scalars.
func openNonces(curve Curve, secret *secretnonce.Pair) (Scalar, Scalar, error) {
	b1, b2 := secret.Split()
	defer ZeroizeBytes(b1)
	defer ZeroizeBytes(b2)
	if len(b1) != curve.ScalarSize() {
		return nil, nil, fmt.Errorf("%w: secret nonce must be %d bytes, got %d", ErrInvalidScalarLength, curve.ScalarSize(), len(b1))
	}
	if err := curve.ValidateScalar(b1); err != nil {
		return nil, nil, err
	}
	if err := curve.ValidateScalar(b2); err != nil {
		return nil, nil, err
	}
	k1, err := curve.ScalarFromBytes(b1)
	if err != nil {
		return nil, nil, err
	}
	k2, err := curve.ScalarFromBytes(b2)
	if err != nil {
		k1.Zeroize()
		return nil, nil, err
	}
	return k1, k2, nil
}

// NonceStore holds secret nonces keyed by the fingerprint of their public
// commitment. Consume must be atomic: it returns the secret at most once per
// fingerprint, then ErrNonceReuse for every later call. The secret is an
// opaque pair from an internal package, so implementations live in this
// module: MemoryNonceStore and the badger-backed store.Store.
type NonceStore interface {
	Put(fingerprint string, secret *secretnonce.Pair) error
	Consume(fingerprint string) (*secretnonce.Pair, error)
	Discard(fingerprint string) error
}

// MemoryNonceStore is the default in-process NonceStore. Consumed
// fingerprints are remembered for the lifetime of the store.
type MemoryNonceStore struct {
	mu   sync.Mutex
	live map[string]*secretnonce.Pair
	used map[string]struct{}
}

// NewMemoryNonceStore creates an empty in-memory nonce store
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		live: make(map[string]*secretnonce.Pair),
		used: make(map[string]struct{}),
	}
}

func (m *MemoryNonceStore) Put(fingerprint string, secret *secretnonce.Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.used[fingerprint]; ok {
		return ErrNonceReuse.WithContext("fingerprint", fingerprint)
	}
	if _, ok := m.live[fingerprint]; ok {
		return ErrNonceReuse.WithContext("fingerprint", fingerprint)
	}
	m.live[fingerprint] = secret
	return nil
}

func (m *MemoryNonceStore) Consume(fingerprint string) (*secretnonce.Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.used[fingerprint]; ok {
		return nil, ErrNonceReuse.WithContext("fingerprint", fingerprint)
	}
	secret, ok := m.live[fingerprint]
	if !ok {
		return nil, ErrNonceNotFound.WithContext("fingerprint", fingerprint)
	}
	delete(m.live, fingerprint)
	m.used[fingerprint] = struct{}{}
	return secret, nil
}

func (m *MemoryNonceStore) Discard(fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if secret, ok := m.live[fingerprint]; ok {
		secret.Zeroize()
		delete(m.live, fingerprint)
	}
	m.used[fingerprint] = struct{}{}
	return nil
}
