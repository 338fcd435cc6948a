package schnorrkel

import (
	"encoding/hex"
	"fmt"
	"io"
	"runtime"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// compressedOddPrefix marks an odd y-coordinate in SEC1 compressed form.
const compressedOddPrefix = 0x03

// Secp256k1Curve implements the Curve interface for secp256k1
type Secp256k1Curve struct {
	random io.Reader
}

// NewSecp256k1Curve creates a new secp256k1 curve instance
func NewSecp256k1Curve(opts ...CurveOption) *Secp256k1Curve {
	o := buildCurveOptions(opts)
	return &Secp256k1Curve{random: o.random}
}

func (c *Secp256k1Curve) Name() string    { return "secp256k1" }
func (c *Secp256k1Curve) ScalarSize() int { return 32 }
func (c *Secp256k1Curve) PointSize() int  { return btcec.PubKeyBytesLenCompressed }

// ScalarFromBytes reduces a 32-byte big-endian value modulo the group order.
// Hash outputs go through here; use ValidateScalar for strict parsing.
func (c *Secp256k1Curve) ScalarFromBytes(data []byte) (Scalar, error) {
	if len(data) != 32 {
		return nil, ErrInvalidScalarLength
	}

	scalar := new(btcec.ModNScalar)
	scalar.SetBytes((*[32]byte)(data))

	return &Secp256k1Scalar{inner: scalar}, nil
}

func (c *Secp256k1Curve) ScalarFromUniformBytes(data []byte) (Scalar, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("need at least 32 bytes for uniform scalar generation, got %d", len(data))
	}

	scalar := new(btcec.ModNScalar)
	scalar.SetBytes((*[32]byte)(data[:32]))
	return &Secp256k1Scalar{inner: scalar}, nil
}

// ScalarRandom draws a single 32-byte candidate. Values at or above the group
// order are reported as ErrInvalidScalar rather than reduced, so callers can
// reject them without introducing modulo bias.
func (c *Secp256k1Curve) ScalarRandom() (Scalar, error) {
	buf, err := readRandom(c.random, 32)
	if err != nil {
		return nil, err
	}
	defer ZeroizeBytes(buf)

	scalar := new(btcec.ModNScalar)
	if overflow := scalar.SetBytes((*[32]byte)(buf)); overflow != 0 {
		return nil, ErrInvalidScalar
	}
	return &Secp256k1Scalar{inner: scalar}, nil
}

func (c *Secp256k1Curve) ScalarZero() Scalar {
	return &Secp256k1Scalar{inner: new(btcec.ModNScalar)}
}

func (c *Secp256k1Curve) ScalarOne() Scalar {
	scalar := new(btcec.ModNScalar)
	scalar.SetInt(1)
	return &Secp256k1Scalar{inner: scalar}
}

func (c *Secp256k1Curve) PointFromBytes(data []byte) (Point, error) {
	if len(data) != btcec.PubKeyBytesLenCompressed && len(data) != secp256k1.PubKeyBytesLenUncompressed {
		return nil, ErrInvalidPointLength
	}

	pubKey, err := btcec.ParsePubKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}

	return &Secp256k1Point{inner: pubKey}, nil
}

func (c *Secp256k1Curve) BasePoint() Point {
	return &Secp256k1Point{inner: btcec.Generator()}
}

func (c *Secp256k1Curve) PointIdentity() Point {
	// Point at infinity
	return &Secp256k1Point{inner: nil}
}

func (c *Secp256k1Curve) ValidateScalar(data []byte) error {
	if len(data) != 32 {
		return ErrInvalidScalarLength
	}

	scalar := new(btcec.ModNScalar)
	overflow := scalar.SetBytes((*[32]byte)(data))
	if overflow != 0 {
		return ErrInvalidScalar
	}
	if scalar.IsZero() {
		return ErrScalarZero
	}

	return nil
}

// Secp256k1Scalar implements the Scalar interface
type Secp256k1Scalar struct {
	inner *btcec.ModNScalar
}

func (s *Secp256k1Scalar) Bytes() []byte {
	var bytes [32]byte
	s.inner.PutBytes(&bytes)
	return bytes[:]
}

func (s *Secp256k1Scalar) String() string {
	return hex.EncodeToString(s.Bytes())
}

func (s *Secp256k1Scalar) Add(other Scalar) Scalar {
	result := new(btcec.ModNScalar)
	result.Add2(s.inner, other.(*Secp256k1Scalar).inner)
	return &Secp256k1Scalar{inner: result}
}

func (s *Secp256k1Scalar) Mul(other Scalar) Scalar {
	result := new(btcec.ModNScalar)
	result.Mul2(s.inner, other.(*Secp256k1Scalar).inner)
	return &Secp256k1Scalar{inner: result}
}

func (s *Secp256k1Scalar) Negate() Scalar {
	result := new(btcec.ModNScalar)
	result.NegateVal(s.inner)
	return &Secp256k1Scalar{inner: result}
}

func (s *Secp256k1Scalar) Equal(other Scalar) bool {
	o, ok := other.(*Secp256k1Scalar)
	if !ok || o == nil {
		return false
	}
	return s.inner.Equals(o.inner)
}

func (s *Secp256k1Scalar) IsZero() bool {
	return s.inner.IsZero()
}

func (s *Secp256k1Scalar) Zeroize() {
	s.inner.Zero()
	runtime.KeepAlive(s)
}

// Secp256k1Point implements the Point interface
type Secp256k1Point struct {
	inner *btcec.PublicKey
}

// NewSecp256k1Point wraps an existing btcec public key.
func NewSecp256k1Point(pub *btcec.PublicKey) *Secp256k1Point {
	return &Secp256k1Point{inner: pub}
}

func (p *Secp256k1Point) Bytes() []byte {
	if p.inner == nil {
		return make([]byte, secp256k1.PubKeyBytesLenUncompressed)
	}
	return p.inner.SerializeUncompressed()
}

func (p *Secp256k1Point) CompressedBytes() []byte {
	if p.inner == nil {
		return make([]byte, btcec.PubKeyBytesLenCompressed)
	}
	return p.inner.SerializeCompressed()
}

func (p *Secp256k1Point) String() string {
	return hex.EncodeToString(p.CompressedBytes())
}

// PublicKey exposes the underlying btcec key; nil for the point at infinity.
func (p *Secp256k1Point) PublicKey() *btcec.PublicKey {
	return p.inner
}

// XBytes returns the 32-byte big-endian x-coordinate.
func (p *Secp256k1Point) XBytes() []byte {
	return p.CompressedBytes()[1:]
}

// HasOddY reports whether the affine y-coordinate is odd.
func (p *Secp256k1Point) HasOddY() bool {
	if p.inner == nil {
		return false
	}
	return p.inner.SerializeCompressed()[0] == compressedOddPrefix
}

func (p *Secp256k1Point) Add(other Point) Point {
	o := other.(*Secp256k1Point)
	if p.inner == nil {
		return o
	}
	if o.inner == nil {
		return p
	}

	var a, b, result btcec.JacobianPoint
	p.inner.AsJacobian(&a)
	o.inner.AsJacobian(&b)

	// btcec/v2 only offers variable-time point addition.
	btcec.AddNonConst(&a, &b, &result)
	return jacobianToPoint(&result)
}

func (p *Secp256k1Point) Sub(other Point) Point {
	return p.Add(other.Negate())
}

func (p *Secp256k1Point) Mul(scalar Scalar) Point {
	if p.inner == nil {
		return p
	}

	k := scalar.(*Secp256k1Scalar).inner

	var pointJac, result btcec.JacobianPoint
	p.inner.AsJacobian(&pointJac)

	// btcec/v2 only offers variable-time scalar multiplication.
	btcec.ScalarMultNonConst(k, &pointJac, &result)
	return jacobianToPoint(&result)
}

func (p *Secp256k1Point) Negate() Point {
	if p.inner == nil {
		return p
	}

	var jac btcec.JacobianPoint
	p.inner.AsJacobian(&jac)
	jac.Y.Negate(1).Normalize()

	return &Secp256k1Point{inner: btcec.NewPublicKey(&jac.X, &jac.Y)}
}

func (p *Secp256k1Point) Equal(other Point) bool {
	o, ok := other.(*Secp256k1Point)
	if !ok || o == nil {
		return false
	}
	if p.inner == nil && o.inner == nil {
		return true
	}
	if p.inner == nil || o.inner == nil {
		return false
	}

	return p.inner.IsEqual(o.inner)
}

func (p *Secp256k1Point) IsIdentity() bool {
	return p.inner == nil
}

func (p *Secp256k1Point) IsOnCurve() bool {
	if p.inner == nil {
		return true
	}
	return p.inner.IsOnCurve()
}

// jacobianToPoint converts a Jacobian result to affine form, mapping the point
// at infinity to the identity representation.
func jacobianToPoint(j *btcec.JacobianPoint) Point {
	if (j.X.IsZero() && j.Y.IsZero()) || j.Z.IsZero() {
		return &Secp256k1Point{inner: nil}
	}
	j.ToAffine()
	return &Secp256k1Point{inner: btcec.NewPublicKey(&j.X, &j.Y)}
}
