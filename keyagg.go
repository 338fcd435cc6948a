package schnorrkel

import (
	"encoding/hex"
	"fmt"
)

// KeyAggregation is the result of combining an ordered signer set.
type KeyAggregation struct {
	Key          Point    // X = Σ a_i·P_i
	Coefficients []Scalar // a_i, aligned with PublicKeys
	PublicKeys   []Point
	SetHash      []byte // L
}

// AggregateKeys combines publicKeys into one aggregate key.
//
//	L   = keccak256(P_1 ‖ … ‖ P_n)
//	a_i = keccak256(L ‖ P_i) mod n
//	X   = Σ a_i·P_i
//
// Binding every coefficient to the whole set defeats rogue-key substitution.
// The result depends on order: every participant must use the same sequence.
func AggregateKeys(curve Curve, publicKeys []Point) (*KeyAggregation, error) {
	if len(publicKeys) == 0 {
		return nil, ErrInvalidInputLength.WithDetails("signer set is empty")
	}

	seen := make(map[string]int, len(publicKeys))
	encoded := make([][]byte, len(publicKeys))
	for i, p := range publicKeys {
		if p == nil || p.IsIdentity() || !p.IsOnCurve() {
			return nil, ErrInvalidPublicKey.WithContext("index", i)
		}
		enc := p.CompressedBytes()
		key := hex.EncodeToString(enc)
		if j, dup := seen[key]; dup {
			return nil, ErrDuplicateSigner.WithContext("index", i).WithContext("first", j)
		}
		seen[key] = i
		encoded[i] = enc
	}

	setHash := Keccak256(encoded...)

	coefficients := make([]Scalar, len(publicKeys))
	terms := make([]Point, len(publicKeys))
	for i, p := range publicKeys {
		a, err := keccakToScalar(curve, setHash, encoded[i])
		if err != nil {
			return nil, fmt.Errorf("failed to derive coefficient %d: %w", i, err)
		}
		coefficients[i] = a
		terms[i] = p.Mul(a)
	}

	x := sumPoints(curve, terms)
	if x.IsIdentity() {
		return nil, ErrInvalidPublicKey.WithDetails("aggregate key is the identity")
	}

	keys := make([]Point, len(publicKeys))
	copy(keys, publicKeys)

	return &KeyAggregation{
		Key:          x,
		Coefficients: coefficients,
		PublicKeys:   keys,
		SetHash:      setHash,
	}, nil
}

// IndexOf returns the position of p in the signer set, or -1.
func (ka *KeyAggregation) IndexOf(p Point) int {
	for i, k := range ka.PublicKeys {
		if k.Equal(p) {
			return i
		}
	}
	return -1
}

// Coefficient returns a_i for the signer with public key p
func (ka *KeyAggregation) Coefficient(p Point) (Scalar, error) {
	i := ka.IndexOf(p)
	if i < 0 {
		return nil, ErrSignerNotInSet
	}
	return ka.Coefficients[i], nil
}
