package schnorrkel

import (
	"testing"
)

func TestPossessionProof(t *testing.T) {
	for _, curve := range []Curve{NewSecp256k1Curve(), NewEd25519Curve()} {
		t.Run(curve.Name(), func(t *testing.T) {
			kp, err := GenerateKeyPair(curve)
			if err != nil {
				t.Fatalf("Failed to generate key pair: %v", err)
			}
			proof, err := ProvePossession(kp)
			if err != nil {
				t.Fatalf("Failed to create proof: %v", err)
			}
			if !proof.Verify(curve, kp.PublicKey()) {
				t.Fatal("Valid proof rejected")
			}

			other, _ := GenerateKeyPair(curve)
			if proof.Verify(curve, other.PublicKey()) {
				t.Fatal("Proof accepted for a different key")
			}

			tampered := &PossessionProof{
				Challenge: proof.Challenge,
				Response:  proof.Response.Add(curve.ScalarOne()),
			}
			if tampered.Verify(curve, kp.PublicKey()) {
				t.Fatal("Tampered proof accepted")
			}
		})
	}
}

func TestPossessionProofJSON(t *testing.T) {
	curve := NewSecp256k1Curve()
	kp, _ := GenerateKeyPair(curve)
	proof, _ := ProvePossession(kp)

	data, err := proof.MarshalJSON()
	if err != nil {
		t.Fatalf("Failed to marshal proof: %v", err)
	}
	back, err := ParsePossessionProof(curve, data)
	if err != nil {
		t.Fatalf("Failed to parse proof: %v", err)
	}
	if !back.Verify(curve, kp.PublicKey()) {
		t.Fatal("Decoded proof rejected")
	}

	bad := []string{
		`not json`,
		`{"challenge":"zz","response":"00"}`,
		`{"challenge":"` + hex64('f') + `","response":"` + hex64('0') + `"}`,
	}
	for _, b := range bad {
		if _, err := ParsePossessionProof(curve, []byte(b)); err == nil {
			t.Fatalf("Expected error for %s", b)
		}
	}
}

func TestPossessionProofNil(t *testing.T) {
	var nilProof *PossessionProof
	if nilProof.Verify(NewSecp256k1Curve(), nil) {
		t.Fatal("Nil proof accepted")
	}
}

func hex64(c byte) string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = c
	}
	return string(b)
}
