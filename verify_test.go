package schnorrkel

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestVerifyEncodedReturnsAccount(t *testing.T) {
	curve := NewSecp256k1Curve()
	msg := HashMessage([]byte("ecrecover"))

	for i := 0; i < 20; i++ {
		sig, keys := signAndAggregate(t, curve, 3, msg)
		encoded, err := sig.Encode()
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		addr, err := VerifyEncoded(encoded, msg)
		if err != nil {
			t.Fatalf("Valid signature rejected: %v", err)
		}

		agg, _ := AggregateKeys(curve, keys)
		expected, _ := agg.Address()
		if addr != expected {
			t.Fatalf("Recovered account %s, expected %s", addr.Hex(), expected.Hex())
		}
	}
}

// Both verifiers must agree on every input.
func TestVerifiersAgree(t *testing.T) {
	curve := NewSecp256k1Curve()
	msg := HashMessage([]byte("agree"))
	other := HashMessage([]byte("disagree"))

	sig, _ := signAndAggregate(t, curve, 2, msg)
	encoded, _ := sig.Encode()

	for _, m := range [][]byte{msg, other} {
		pure := sig.Verify(curve, EVMChallenge{}, m)
		_, recovered := VerifyEncoded(encoded, m)
		if (pure == nil) != (recovered == nil) {
			t.Fatalf("Verifiers disagree: pure=%v ecrecover=%v", pure, recovered)
		}
	}
}

func TestVerifyForAccountWrongAccount(t *testing.T) {
	curve := NewSecp256k1Curve()
	msg := HashMessage([]byte("account"))
	sig, _ := signAndAggregate(t, curve, 2, msg)
	encoded, _ := sig.Encode()

	err := VerifyForAccount(encoded, msg, common.HexToAddress("0x000000000000000000000000000000000000dEaD"))
	if !errors.Is(err, ErrVerificationFailure) {
		t.Fatalf("Expected ErrVerificationFailure, got %v", err)
	}
}

func TestVerifySignatureWrongScheme(t *testing.T) {
	curve := NewSecp256k1Curve()
	msg := HashMessage([]byte("scheme"))
	sig, _ := signAndAggregate(t, curve, 2, msg)

	if err := sig.Verify(curve, StandardChallenge{}, msg); !errors.Is(err, ErrVerificationFailure) {
		t.Fatalf("Expected ErrVerificationFailure under a different scheme, got %v", err)
	}
}

func TestVerifySignatureRejectsForeignKey(t *testing.T) {
	curve := NewSecp256k1Curve()
	msg := HashMessage([]byte("foreign"))
	sig, _ := signAndAggregate(t, curve, 2, msg)
	_, other := signAndAggregate(t, curve, 2, msg)

	agg, _ := AggregateKeys(curve, other)
	err := VerifySignature(curve, EVMChallenge{}, agg.Key, sig.Challenge, sig.Signature, msg)
	if !errors.Is(err, ErrVerificationFailure) {
		t.Fatalf("Expected ErrVerificationFailure, got %v", err)
	}
}

func TestVerifyRejectsBadMessageLength(t *testing.T) {
	curve := NewSecp256k1Curve()
	sig, _ := signAndAggregate(t, curve, 2, HashMessage([]byte("len")))
	encoded, _ := sig.Encode()

	if _, err := VerifyEncoded(encoded, []byte("short")); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("Expected ErrInvalidMessage, got %v", err)
	}
	if err := sig.Verify(curve, EVMChallenge{}, nil); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("Expected ErrInvalidMessage, got %v", err)
	}
}
