package schnorrkel

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestGenerateKeyPair(t *testing.T) {
	for _, curveType := range []CurveType{Secp256k1, Ed25519} {
		t.Run(string(curveType), func(t *testing.T) {
			curve, err := NewCurve(curveType)
			if err != nil {
				t.Fatalf("Failed to create curve: %v", err)
			}

			kp, err := GenerateKeyPair(curve)
			if err != nil {
				t.Fatalf("Failed to generate key pair: %v", err)
			}
			if kp.private.IsZero() {
				t.Fatal("Private key is zero")
			}
			if !curve.BasePoint().Mul(kp.private).Equal(kp.PublicKey()) {
				t.Fatal("Public key does not match private key")
			}

			other, err := GenerateKeyPair(curve)
			if err != nil {
				t.Fatalf("Failed to generate second key pair: %v", err)
			}
			if kp.Equal(other) {
				t.Fatal("Two generated key pairs are equal")
			}
		})
	}
}

func TestGenerateKeyPairDeterministicSource(t *testing.T) {
	a, err := GenerateKeyPair(NewSecp256k1Curve(WithRandomness(seededReader(7))))
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	b, err := GenerateKeyPair(NewSecp256k1Curve(WithRandomness(seededReader(7))))
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	if !a.Equal(b) {
		t.Fatal("Same entropy produced different key pairs")
	}
}

func TestGenerateKeyPairFaultyRandomness(t *testing.T) {
	tests := []struct {
		name   string
		curve  Curve
		expect error
	}{
		{"secp256k1 above order", NewSecp256k1Curve(WithRandomness(constantReader(0xff))), ErrInvalidPrivateKey},
		{"secp256k1 zero", NewSecp256k1Curve(WithRandomness(constantReader(0))), ErrInvalidPrivateKey},
		{"secp256k1 read failure", NewSecp256k1Curve(WithRandomness(failingReader{})), ErrRandomnessGeneration},
		{"ed25519 zero", NewEd25519Curve(WithRandomness(constantReader(0))), ErrInvalidPrivateKey},
		{"ed25519 read failure", NewEd25519Curve(WithRandomness(failingReader{})), ErrRandomnessGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateKeyPair(tt.curve)
			if !errors.Is(err, tt.expect) {
				t.Fatalf("Expected %v, got %v", tt.expect, err)
			}
			if IsRecoverableError(err) {
				t.Fatal("Key generation failure must not be recoverable")
			}
		})
	}
}

func TestKeyPairSerializeRoundTrip(t *testing.T) {
	for _, curveType := range []CurveType{Secp256k1, Ed25519} {
		t.Run(string(curveType), func(t *testing.T) {
			curve, _ := NewCurve(curveType)
			for i := 0; i < 20; i++ {
				kp, err := GenerateKeyPair(curve)
				if err != nil {
					t.Fatalf("Failed to generate key pair: %v", err)
				}
				data, err := kp.Serialize()
				if err != nil {
					t.Fatalf("Failed to serialize: %v", err)
				}
				restored, err := KeyPairFromSerialized(curve, data)
				if err != nil {
					t.Fatalf("Failed to restore: %v", err)
				}
				if !kp.Equal(restored) {
					t.Fatal("Round trip changed the key pair")
				}
				again, err := restored.Serialize()
				if err != nil {
					t.Fatalf("Failed to re-serialize: %v", err)
				}
				if string(again) != string(data) {
					t.Fatalf("Serialization is not byte-exact:\n%s\n%s", data, again)
				}
			}
		})
	}
}

func TestKeyPairSerializedShape(t *testing.T) {
	kp, err := GenerateKeyPair(NewSecp256k1Curve())
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	data, _ := kp.Serialize()

	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Serialized key pair is not JSON: %v", err)
	}
	if len(fields["privateKey"]) != 64 {
		t.Fatalf("Expected 32-byte hex private key, got %q", fields["privateKey"])
	}
	if len(fields["publicKey"]) != 66 {
		t.Fatalf("Expected 33-byte hex public key, got %q", fields["publicKey"])
	}
}

func TestKeyPairFromSerializedRejectsMismatch(t *testing.T) {
	curve := NewSecp256k1Curve()
	a, _ := GenerateKeyPair(curve)
	b, _ := GenerateKeyPair(curve)

	aData, _ := a.Serialize()
	bData, _ := b.Serialize()

	var aFields, bFields map[string]string
	_ = json.Unmarshal(aData, &aFields)
	_ = json.Unmarshal(bData, &bFields)
	aFields["publicKey"] = bFields["publicKey"]
	mixed, _ := json.Marshal(aFields)

	if _, err := KeyPairFromSerialized(curve, mixed); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("Expected ErrKeyMismatch, got %v", err)
	}
}

func TestKeyPairFromPrivateKeyRejectsOutOfRange(t *testing.T) {
	curve := NewSecp256k1Curve()

	order := []byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe,
		0xba, 0xae, 0xdc, 0xe6, 0xaf, 0x48, 0xa0, 0x3b,
		0xbf, 0xd2, 0x5e, 0x8c, 0xd0, 0x36, 0x41, 0x41,
	}
	for _, tc := range []struct {
		name string
		key  []byte
	}{
		{"zero", make([]byte, 32)},
		{"order", order},
		{"short", []byte{1, 2, 3}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := KeyPairFromPrivateKey(curve, tc.key); !errors.Is(err, ErrInvalidPrivateKey) {
				t.Fatalf("Expected ErrInvalidPrivateKey, got %v", err)
			}
		})
	}
}

func TestKeyPairZeroize(t *testing.T) {
	kp, _ := GenerateKeyPair(NewSecp256k1Curve())
	kp.Zeroize()
	if !kp.private.IsZero() {
		t.Fatal("Private key not cleared")
	}
}
