package schnorrkel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aa-schnorr/schnorrkel/internal/secretnonce"
)

func TestGenerateNoncesCommitment(t *testing.T) {
	for _, curve := range []Curve{NewSecp256k1Curve(), NewEd25519Curve()} {
		t.Run(curve.Name(), func(t *testing.T) {
			secret, public, err := generateNonces(curve)
			if err != nil {
				t.Fatalf("Failed to generate nonces: %v", err)
			}
			k1, k2, err := openNonces(curve, secret)
			if err != nil {
				t.Fatalf("Failed to open nonces: %v", err)
			}
			g := curve.BasePoint()
			if !g.Mul(k1).Equal(public.K1) || !g.Mul(k2).Equal(public.K2) {
				t.Fatal("Public commitment does not match secret nonces")
			}
			if k1.Equal(k2) {
				t.Fatal("k1 and k2 must be independent")
			}

			_, other, _ := generateNonces(curve)
			if public.Equal(other) || public.Fingerprint() == other.Fingerprint() {
				t.Fatal("Two draws produced the same commitment")
			}
		})
	}
}

func TestGenerateNoncesFailingRandomness(t *testing.T) {
	curve := NewSecp256k1Curve(WithRandomness(failingReader{}))
	if _, _, err := generateNonces(curve); !errors.Is(err, ErrRandomnessGeneration) {
		t.Fatalf("Expected ErrRandomnessGeneration, got %v", err)
	}
}

func TestPublicNoncesCodec(t *testing.T) {
	curve := NewSecp256k1Curve()
	_, public, _ := generateNonces(curve)

	data := public.Bytes()
	if len(data) != 2*curve.PointSize() {
		t.Fatalf("Expected %d bytes, got %d", 2*curve.PointSize(), len(data))
	}
	back, err := PublicNoncesFromBytes(curve, data)
	if err != nil {
		t.Fatalf("Failed to parse commitment: %v", err)
	}
	if !back.Equal(public) {
		t.Fatal("Commitment changed in transit")
	}

	if _, err := PublicNoncesFromBytes(curve, data[:40]); !errors.Is(err, ErrInvalidPointLength) {
		t.Fatalf("Expected ErrInvalidPointLength, got %v", err)
	}
	bad := append([]byte(nil), data...)
	bad[0] = 0x07
	if _, err := PublicNoncesFromBytes(curve, bad); err == nil {
		t.Fatal("Expected error for malformed K1")
	}
}

func TestOpenNoncesRejectsBadPairs(t *testing.T) {
	curve := NewSecp256k1Curve()
	secret, _, _ := generateNonces(curve)

	stored, err := secretnonce.FromBytes(secret.Bytes())
	if err != nil {
		t.Fatalf("Failed to reload pair: %v", err)
	}
	if _, _, err := openNonces(curve, stored); err != nil {
		t.Fatalf("Failed to open reloaded pair: %v", err)
	}

	secret.Zeroize()
	if _, _, err := openNonces(curve, secret); !errors.Is(err, ErrScalarZero) {
		t.Fatalf("Expected ErrScalarZero for a zeroized pair, got %v", err)
	}
	short, _ := secretnonce.New(make([]byte, 16), make([]byte, 16))
	if _, _, err := openNonces(curve, short); !errors.Is(err, ErrInvalidScalarLength) {
		t.Fatalf("Expected ErrInvalidScalarLength, got %v", err)
	}
	if bytes.Equal(stored.Bytes(), make([]byte, 64)) {
		t.Fatal("Reloaded pair must not share memory with the zeroized one")
	}
}

func TestMemoryNonceStore(t *testing.T) {
	curve := NewSecp256k1Curve()
	store := NewMemoryNonceStore()
	secret, public, _ := generateNonces(curve)
	fp := public.Fingerprint()

	if _, err := store.Consume(fp); !errors.Is(err, ErrNonceNotFound) {
		t.Fatalf("Expected ErrNonceNotFound, got %v", err)
	}
	if err := store.Put(fp, secret); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if err := store.Put(fp, secret); !errors.Is(err, ErrNonceReuse) {
		t.Fatalf("Expected ErrNonceReuse for live duplicate, got %v", err)
	}

	got, err := store.Consume(fp)
	if err != nil {
		t.Fatalf("Failed to consume: %v", err)
	}
	if got != secret {
		t.Fatal("Consume returned a different secret")
	}
	if _, err := store.Consume(fp); !errors.Is(err, ErrNonceReuse) {
		t.Fatalf("Expected ErrNonceReuse, got %v", err)
	}
	if err := store.Put(fp, secret); !errors.Is(err, ErrNonceReuse) {
		t.Fatalf("Expected ErrNonceReuse re-storing consumed commitment, got %v", err)
	}
}

func TestMemoryNonceStoreDiscard(t *testing.T) {
	curve := NewSecp256k1Curve()
	store := NewMemoryNonceStore()
	secret, public, _ := generateNonces(curve)
	fp := public.Fingerprint()

	_ = store.Put(fp, secret)
	if err := store.Discard(fp); err != nil {
		t.Fatalf("Failed to discard: %v", err)
	}
	if !secret.IsZero() {
		t.Fatal("Discard must zeroize the secret")
	}
	if _, err := store.Consume(fp); !errors.Is(err, ErrNonceReuse) {
		t.Fatalf("Expected ErrNonceReuse after discard, got %v", err)
	}
}
