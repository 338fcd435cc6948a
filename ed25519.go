package schnorrkel

import (
	"encoding/hex"
	"fmt"
	"io"

	"filippo.io/edwards25519"
)

// Ed25519Curve runs the protocol over the prime-order edwards25519 group. It
// only pairs with StandardChallenge; the EVM encoding and address derivation
// need secp256k1.
type Ed25519Curve struct {
	random io.Reader
}

// NewEd25519Curve creates an edwards25519 engine
func NewEd25519Curve(opts ...CurveOption) *Ed25519Curve {
	o := buildCurveOptions(opts)
	return &Ed25519Curve{random: o.random}
}

func (c *Ed25519Curve) Name() string    { return "ed25519" }
func (c *Ed25519Curve) ScalarSize() int { return 32 }
func (c *Ed25519Curve) PointSize() int  { return 32 }

// ScalarFromBytes accepts only canonical little-endian encodings below l.
func (c *Ed25519Curve) ScalarFromBytes(data []byte) (Scalar, error) {
	if len(data) != 32 {
		return nil, ErrInvalidScalarLength
	}
	inner, err := edwards25519.NewScalar().SetCanonicalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return &Ed25519Scalar{inner: inner}, nil
}

// ScalarFromUniformBytes reduces a hash digest of 32 to 64 bytes mod l.
// Shorter digests are zero-extended to the 64-byte wide input.
func (c *Ed25519Curve) ScalarFromUniformBytes(data []byte) (Scalar, error) {
	if len(data) < 32 || len(data) > 64 {
		return nil, ErrInvalidScalarLength
	}
	var wide [64]byte
	copy(wide[:], data)
	inner, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return &Ed25519Scalar{inner: inner}, nil
}

func (c *Ed25519Curve) ScalarRandom() (Scalar, error) {
	buf, err := readRandom(c.random, 64)
	if err != nil {
		return nil, err
	}
	defer ZeroizeBytes(buf)
	return c.ScalarFromUniformBytes(buf)
}

func (c *Ed25519Curve) ScalarZero() Scalar {
	return &Ed25519Scalar{inner: edwards25519.NewScalar()}
}

func (c *Ed25519Curve) ScalarOne() Scalar {
	var one [32]byte
	one[0] = 1
	inner, _ := edwards25519.NewScalar().SetCanonicalBytes(one[:])
	return &Ed25519Scalar{inner: inner}
}

func (c *Ed25519Curve) PointFromBytes(data []byte) (Point, error) {
	if len(data) != 32 {
		return nil, ErrInvalidPointLength
	}
	inner, err := edwards25519.NewIdentityPoint().SetBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return &Ed25519Point{inner: inner}, nil
}

func (c *Ed25519Curve) BasePoint() Point {
	return &Ed25519Point{inner: edwards25519.NewGeneratorPoint()}
}

func (c *Ed25519Curve) PointIdentity() Point {
	return &Ed25519Point{inner: edwards25519.NewIdentityPoint()}
}

// ValidateScalar is the strict parse used for secret material: canonical and
// non-zero.
func (c *Ed25519Curve) ValidateScalar(data []byte) error {
	s, err := c.ScalarFromBytes(data)
	if err != nil {
		return err
	}
	if s.IsZero() {
		return ErrScalarZero
	}
	return nil
}

// Ed25519Scalar is an integer mod l
type Ed25519Scalar struct {
	inner *edwards25519.Scalar
}

func edScalar(s Scalar) *edwards25519.Scalar { return s.(*Ed25519Scalar).inner }

func (s *Ed25519Scalar) Bytes() []byte  { return s.inner.Bytes() }
func (s *Ed25519Scalar) String() string { return hex.EncodeToString(s.Bytes()) }

func (s *Ed25519Scalar) Add(other Scalar) Scalar {
	return &Ed25519Scalar{inner: edwards25519.NewScalar().Add(s.inner, edScalar(other))}
}

func (s *Ed25519Scalar) Mul(other Scalar) Scalar {
	return &Ed25519Scalar{inner: edwards25519.NewScalar().Multiply(s.inner, edScalar(other))}
}

func (s *Ed25519Scalar) Negate() Scalar {
	return &Ed25519Scalar{inner: edwards25519.NewScalar().Negate(s.inner)}
}

func (s *Ed25519Scalar) Equal(other Scalar) bool {
	o, ok := other.(*Ed25519Scalar)
	return ok && o != nil && s.inner.Equal(o.inner) == 1
}

func (s *Ed25519Scalar) IsZero() bool {
	return s.inner.Equal(edwards25519.NewScalar()) == 1
}

// Zeroize overwrites the value in place so every holder of s sees zero.
func (s *Ed25519Scalar) Zeroize() {
	s.inner.Set(edwards25519.NewScalar())
}

// Ed25519Point is a point in the prime-order subgroup
type Ed25519Point struct {
	inner *edwards25519.Point
}

func edPoint(p Point) *edwards25519.Point { return p.(*Ed25519Point).inner }

// Bytes returns the 32-byte compressed encoding. Edwards points have no
// uncompressed form here, so CompressedBytes is the same.
func (p *Ed25519Point) Bytes() []byte           { return p.inner.Bytes() }
func (p *Ed25519Point) CompressedBytes() []byte { return p.inner.Bytes() }
func (p *Ed25519Point) String() string          { return hex.EncodeToString(p.Bytes()) }

func (p *Ed25519Point) Add(other Point) Point {
	return &Ed25519Point{inner: edwards25519.NewIdentityPoint().Add(p.inner, edPoint(other))}
}

func (p *Ed25519Point) Sub(other Point) Point {
	return &Ed25519Point{inner: edwards25519.NewIdentityPoint().Subtract(p.inner, edPoint(other))}
}

func (p *Ed25519Point) Mul(scalar Scalar) Point {
	return &Ed25519Point{inner: edwards25519.NewIdentityPoint().ScalarMult(edScalar(scalar), p.inner)}
}

func (p *Ed25519Point) Negate() Point {
	return &Ed25519Point{inner: edwards25519.NewIdentityPoint().Negate(p.inner)}
}

func (p *Ed25519Point) Equal(other Point) bool {
	o, ok := other.(*Ed25519Point)
	return ok && o != nil && p.inner.Equal(o.inner) == 1
}

func (p *Ed25519Point) IsIdentity() bool {
	return p.inner.Equal(edwards25519.NewIdentityPoint()) == 1
}

// IsOnCurve re-decodes the encoding; edwards25519 only builds valid points.
func (p *Ed25519Point) IsOnCurve() bool {
	_, err := edwards25519.NewIdentityPoint().SetBytes(p.inner.Bytes())
	return err == nil
}
