package schnorrkel

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyPair owns one private scalar and its public point. It is created when a
// signer is initialized and is never shared across signers.
type KeyPair struct {
	curve   Curve
	private Scalar
	public  Point
}

type serializedKeyPair struct {
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
}

// GenerateKeyPair draws a private key in (0, n) from the curve's entropy
// source. Out-of-range draws are rejected, never reduced.
func GenerateKeyPair(curve Curve) (*KeyPair, error) {
	private, err := randomScalar(curve)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		curve:   curve,
		private: private,
		public:  curve.BasePoint().Mul(private),
	}, nil
}

// KeyPairFromPrivateKey rebuilds a key pair from a canonical private scalar.
func KeyPairFromPrivateKey(curve Curve, privateKey []byte) (*KeyPair, error) {
	if err := curve.ValidateScalar(privateKey); err != nil {
		return nil, ErrInvalidPrivateKey.WithCause(err)
	}
	private, err := curve.ScalarFromBytes(privateKey)
	if err != nil {
		return nil, ErrInvalidPrivateKey.WithCause(err)
	}
	return &KeyPair{
		curve:   curve,
		private: private,
		public:  curve.BasePoint().Mul(private),
	}, nil
}

// KeyPairFromSerialized is the inverse of Serialize. The stored public key
// must match the one derived from the private key.
func KeyPairFromSerialized(curve Curve, data []byte) (*KeyPair, error) {
	var s serializedKeyPair
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode key pair: %w", err)
	}

	privateBytes, err := hex.DecodeString(s.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex: %w", err)
	}
	defer ZeroizeBytes(privateBytes)

	kp, err := KeyPairFromPrivateKey(curve, privateBytes)
	if err != nil {
		return nil, err
	}

	publicBytes, err := hex.DecodeString(s.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key hex: %w", err)
	}
	public, err := curve.PointFromBytes(publicBytes)
	if err != nil {
		return nil, ErrInvalidPublicKey.WithCause(err)
	}
	if !public.Equal(kp.public) {
		kp.Zeroize()
		return nil, ErrKeyMismatch
	}
	return kp, nil
}

// Serialize encodes the key pair as {"privateKey": hex, "publicKey": hex}.
// The output contains the private key and must be stored accordingly.
func (kp *KeyPair) Serialize() ([]byte, error) {
	return json.Marshal(serializedKeyPair{
		PrivateKey: hex.EncodeToString(kp.private.Bytes()),
		PublicKey:  hex.EncodeToString(kp.public.CompressedBytes()),
	})
}

// PublicKey returns the public point
func (kp *KeyPair) PublicKey() Point { return kp.public }

// Curve returns the engine the key pair was generated on
func (kp *KeyPair) Curve() Curve { return kp.curve }

// Equal reports whether both key pairs hold the same private scalar.
func (kp *KeyPair) Equal(other *KeyPair) bool {
	if other == nil {
		return false
	}
	return SecureCompare(kp.private.Bytes(), other.private.Bytes()) && kp.public.Equal(other.public)
}

// Zeroize clears the private scalar
func (kp *KeyPair) Zeroize() {
	if kp.private != nil {
		kp.private.Zeroize()
	}
}
