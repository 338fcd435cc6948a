package schnorrkel

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

var possessionDomain = []byte("SCHNORRKEL_POSSESSION")

// PossessionProof is a Schnorr proof of knowledge of a signer's private key.
// Exchanging proofs alongside public keys lets every participant reject a
// key it cannot be sure the sender controls before it enters the signer set.
type PossessionProof struct {
	Challenge Scalar
	Response  Scalar
}

type possessionProofJSON struct {
	Challenge string `json:"challenge"`
	Response  string `json:"response"`
}

// ProvePossession creates a proof of knowledge for kp's private key
func ProvePossession(kp *KeyPair) (*PossessionProof, error) {
	curve := kp.curve
	nonce, err := randomScalar(curve)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	defer nonce.Zeroize()

	// R = g^r
	commitment := curve.BasePoint().Mul(nonce)

	challenge, err := possessionChallenge(curve, kp.public, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to compute challenge: %w", err)
	}

	// s = r + c*x
	response := nonce.Add(challenge.Mul(kp.private))

	return &PossessionProof{
		Challenge: challenge,
		Response:  response,
	}, nil
}

// Verify checks the proof against publicKey
func (pp *PossessionProof) Verify(curve Curve, publicKey Point) bool {
	if pp == nil || pp.Challenge == nil || pp.Response == nil || publicKey == nil {
		return false
	}
	// R' = g^s - c*X
	commitment := curve.BasePoint().Mul(pp.Response).Sub(publicKey.Mul(pp.Challenge))

	expected, err := possessionChallenge(curve, publicKey, commitment)
	if err != nil {
		return false
	}
	return pp.Challenge.Equal(expected)
}

// MarshalJSON encodes the proof as hex scalars
func (pp *PossessionProof) MarshalJSON() ([]byte, error) {
	return json.Marshal(possessionProofJSON{
		Challenge: hex.EncodeToString(pp.Challenge.Bytes()),
		Response:  hex.EncodeToString(pp.Response.Bytes()),
	})
}

// ParsePossessionProof decodes the JSON form produced by MarshalJSON
func ParsePossessionProof(curve Curve, data []byte) (*PossessionProof, error) {
	var raw possessionProofJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode proof: %w", err)
	}
	c, err := parseHexScalar(curve, raw.Challenge)
	if err != nil {
		return nil, fmt.Errorf("invalid challenge: %w", err)
	}
	s, err := parseHexScalar(curve, raw.Response)
	if err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return &PossessionProof{Challenge: c, Response: s}, nil
}

func parseHexScalar(curve Curve, s string) (Scalar, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return strictScalar(curve, b)
}

// possessionChallenge binds the proof to the curve and the public key so it
// cannot be replayed as a signing challenge.
func possessionChallenge(curve Curve, publicKey, commitment Point) (Scalar, error) {
	return sha256ToScalar(curve,
		possessionDomain,
		[]byte(curve.Name()),
		commitment.CompressedBytes(),
		publicKey.CompressedBytes())
}
