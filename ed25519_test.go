package schnorrkel

import (
	"bytes"
	"errors"
	"testing"

	"filippo.io/edwards25519"
)

func TestEd25519ScalarFromUniformBytes(t *testing.T) {
	curve := NewEd25519Curve()

	digest := Keccak256([]byte("ed25519 challenge"))
	a, err := curve.ScalarFromUniformBytes(digest)
	if err != nil {
		t.Fatalf("Failed to reduce 32-byte digest: %v", err)
	}
	// A 32-byte digest is zero-extended, so it reduces like its 64-byte padding.
	b, err := curve.ScalarFromUniformBytes(append(append([]byte(nil), digest...), make([]byte, 32)...))
	if err != nil {
		t.Fatalf("Failed to reduce 64-byte input: %v", err)
	}
	if !a.Equal(b) {
		t.Fatal("Zero-extended digest reduced differently")
	}

	for _, n := range []int{0, 31, 65} {
		if _, err := curve.ScalarFromUniformBytes(make([]byte, n)); !errors.Is(err, ErrInvalidScalarLength) {
			t.Fatalf("Expected ErrInvalidScalarLength for %d bytes, got %v", n, err)
		}
	}
}

func TestEd25519ScalarCanonical(t *testing.T) {
	curve := NewEd25519Curve()

	// l itself is not a canonical encoding.
	l := []byte{
		0xed, 0xd3, 0xf5, 0x5c, 0x1a, 0x63, 0x12, 0x58, 0xd6, 0x9c, 0xf7, 0xa2, 0xde, 0xf9, 0xde, 0x14,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10,
	}
	if _, err := curve.ScalarFromBytes(l); !errors.Is(err, ErrInvalidScalar) {
		t.Fatalf("Expected ErrInvalidScalar, got %v", err)
	}
	if err := curve.ValidateScalar(make([]byte, 32)); !errors.Is(err, ErrScalarZero) {
		t.Fatalf("Expected ErrScalarZero, got %v", err)
	}
	if err := curve.ValidateScalar(curve.ScalarOne().Bytes()); err != nil {
		t.Fatalf("One rejected: %v", err)
	}
}

func TestEd25519ScalarArithmetic(t *testing.T) {
	curve := NewEd25519Curve()
	x, err := curve.ScalarRandom()
	if err != nil {
		t.Fatalf("Failed to draw scalar: %v", err)
	}
	g := curve.BasePoint()

	if !x.Add(x.Negate()).IsZero() {
		t.Fatal("x + (-x) must be zero")
	}
	if !x.Mul(curve.ScalarOne()).Equal(x) {
		t.Fatal("x * 1 must be x")
	}
	if !g.Mul(x).Sub(g.Mul(x)).IsIdentity() {
		t.Fatal("xG - xG must be the identity")
	}
	if !g.Mul(x).Add(g.Mul(x.Negate())).Equal(curve.PointIdentity()) {
		t.Fatal("xG + (-x)G must be the identity")
	}
	if !g.Mul(x).Negate().Equal(g.Mul(x.Negate())) {
		t.Fatal("-(xG) must equal (-x)G")
	}

	p, err := curve.PointFromBytes(g.Mul(x).Bytes())
	if err != nil || !p.Equal(g.Mul(x)) || !p.IsOnCurve() {
		t.Fatalf("Point round trip failed: %v", err)
	}
	if !bytes.Equal(p.CompressedBytes(), p.Bytes()) {
		t.Fatal("Edwards encodings are always compressed")
	}
}

func TestEd25519ScalarZeroize(t *testing.T) {
	curve := NewEd25519Curve()
	x, _ := curve.ScalarRandom()
	inner := x.(*Ed25519Scalar).inner

	x.Zeroize()
	if !x.IsZero() || inner.Equal(edwards25519.NewScalar()) != 1 {
		t.Fatal("Zeroize must clear the scalar in place")
	}
}

func TestEd25519FailingRandomness(t *testing.T) {
	curve := NewEd25519Curve(WithRandomness(failingReader{}))
	if _, err := curve.ScalarRandom(); err == nil {
		t.Fatal("Expected error from a failing entropy source")
	}
}
