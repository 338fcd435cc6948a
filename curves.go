package schnorrkel

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Curve defines the interface for elliptic curve operations consumed by the
// signing core. Engines are constructed explicitly and passed to every
// operation; there is no package-level curve instance.
type Curve interface {
	// Metadata
	Name() string
	ScalarSize() int
	PointSize() int

	// Scalar operations
	ScalarFromBytes([]byte) (Scalar, error)
	ScalarFromUniformBytes([]byte) (Scalar, error)
	ScalarRandom() (Scalar, error)
	ScalarZero() Scalar
	ScalarOne() Scalar

	// Point operations
	PointFromBytes([]byte) (Point, error)
	BasePoint() Point
	PointIdentity() Point

	// Validation
	ValidateScalar([]byte) error
}

// Scalar represents a scalar value in the curve's field
type Scalar interface {
	// Serialization
	Bytes() []byte
	String() string

	// Arithmetic operations
	Add(Scalar) Scalar
	Mul(Scalar) Scalar
	Negate() Scalar

	// Comparison
	Equal(Scalar) bool
	IsZero() bool

	// Security
	Zeroize()
}

// Point represents a point on the elliptic curve
type Point interface {
	// Serialization
	Bytes() []byte
	CompressedBytes() []byte
	String() string

	// Arithmetic operations
	Add(Point) Point
	Sub(Point) Point
	Mul(Scalar) Point
	Negate() Point

	// Comparison
	Equal(Point) bool
	IsIdentity() bool

	// Validation
	IsOnCurve() bool
}

// CurveType represents supported curve types
type CurveType string

const (
	Secp256k1 CurveType = "secp256k1"
	Ed25519   CurveType = "ed25519"
)

// CurveOption configures a curve engine at construction.
type CurveOption func(*curveOptions)

type curveOptions struct {
	random io.Reader
}

// WithRandomness replaces crypto/rand as the engine's entropy source.
// Intended for tests and HSM-backed readers.
func WithRandomness(r io.Reader) CurveOption {
	return func(o *curveOptions) {
		if r != nil {
			o.random = r
		}
	}
}

func buildCurveOptions(opts []CurveOption) curveOptions {
	o := curveOptions{random: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewCurve creates a new curve instance
func NewCurve(curveType CurveType, opts ...CurveOption) (Curve, error) {
	switch curveType {
	case Secp256k1:
		return NewSecp256k1Curve(opts...), nil
	case Ed25519:
		return NewEd25519Curve(opts...), nil
	default:
		return nil, fmt.Errorf("unsupported curve type: %s", curveType)
	}
}

// Low-level curve errors
var (
	ErrInvalidScalarLength = errors.New("invalid scalar length")
	ErrInvalidPointLength  = errors.New("invalid point length")
	ErrInvalidScalar       = errors.New("invalid scalar value")
	ErrInvalidPoint        = errors.New("invalid point")
	ErrPointNotOnCurve     = errors.New("point not on curve")
	ErrScalarZero          = errors.New("scalar is zero")
)

// readRandom fills a buffer of the given size from r.
func readRandom(r io.Reader, size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
