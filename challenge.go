package schnorrkel

import (
	"fmt"
)

// ChallengeScheme derives the Fiat-Shamir challenge e from the final nonce R,
// the aggregate key X and the 32-byte message hash. Signers, the session and
// the verifiers must all use the same scheme.
type ChallengeScheme interface {
	Name() string
	Challenge(curve Curve, r, x Point, msgHash []byte) (Scalar, error)
}

// EVMChallenge is the challenge an ecrecover-based contract recomputes:
//
//	e = keccak256(address(R) ‖ uint8(parity(X)+27) ‖ px ‖ msgHash)
//
// It requires secp256k1.
type EVMChallenge struct{}

func (EVMChallenge) Name() string { return "evm" }

func (EVMChallenge) Challenge(curve Curve, r, x Point, msgHash []byte) (Scalar, error) {
	if len(msgHash) != 32 {
		return nil, ErrInvalidMessage.WithContext("length", len(msgHash))
	}
	xp, ok := x.(*Secp256k1Point)
	if !ok {
		return nil, ErrUnsupportedCurve.WithContext("curve", curve.Name())
	}
	rAddr, err := PointToEthereumAddress(r)
	if err != nil {
		return nil, fmt.Errorf("failed to derive nonce address: %w", err)
	}
	return keccakToScalar(curve, rAddr, []byte{parityByte(xp)}, xp.XBytes(), msgHash)
}

// StandardChallenge is e = SHA-256(R ‖ X ‖ msgHash) mod n over compressed
// encodings. It works on any curve engine.
type StandardChallenge struct{}

func (StandardChallenge) Name() string { return "standard" }

func (StandardChallenge) Challenge(curve Curve, r, x Point, msgHash []byte) (Scalar, error) {
	if len(msgHash) != 32 {
		return nil, ErrInvalidMessage.WithContext("length", len(msgHash))
	}
	return sha256ToScalar(curve, r.CompressedBytes(), x.CompressedBytes(), msgHash)
}

// DefaultChallengeScheme returns EVMChallenge on secp256k1 and
// StandardChallenge elsewhere.
func DefaultChallengeScheme(curve Curve) ChallengeScheme {
	if _, ok := curve.(*Secp256k1Curve); ok {
		return EVMChallenge{}
	}
	return StandardChallenge{}
}

// parityByte maps the prefix of compressed X onto the ECDSA v convention.
func parityByte(x *Secp256k1Point) byte {
	if x.HasOddY() {
		return 28
	}
	return 27
}

// signingContext is everything a session derives from the signer set, the
// published nonces and the message. Every participant computes it
// independently and must arrive at identical values.
type signingContext struct {
	agg        *KeyAggregation
	binding    Scalar  // b
	nonceTerms []Point // R_i = K1_i + b·K2_i
	finalNonce Point   // R = Σ R_i
	challenge  Scalar  // e
}

func newSigningContext(curve Curve, scheme ChallengeScheme, agg *KeyAggregation, msgHash []byte, nonces []*PublicNonces) (*signingContext, error) {
	if len(msgHash) != 32 {
		return nil, ErrInvalidMessage.WithContext("length", len(msgHash))
	}
	if len(nonces) != len(agg.PublicKeys) {
		return nil, ErrInvalidInputLength.
			WithContext("public_keys", len(agg.PublicKeys)).
			WithContext("public_nonces", len(nonces))
	}

	k1s := make([]Point, len(nonces))
	k2s := make([]Point, len(nonces))
	for i, n := range nonces {
		if n == nil || n.K1 == nil || n.K2 == nil {
			return nil, ErrInvalidInputLength.WithDetails("missing nonce commitment at index %d", i)
		}
		k1s[i] = n.K1
		k2s[i] = n.K2
	}

	b, err := keccakToScalar(curve,
		agg.Key.CompressedBytes(),
		msgHash,
		sumPoints(curve, k1s).CompressedBytes(),
		sumPoints(curve, k2s).CompressedBytes())
	if err != nil {
		return nil, fmt.Errorf("failed to derive nonce binding: %w", err)
	}

	terms := make([]Point, len(nonces))
	for i := range nonces {
		terms[i] = k1s[i].Add(k2s[i].Mul(b))
	}
	r := sumPoints(curve, terms)
	if r.IsIdentity() {
		return nil, fmt.Errorf("%w: final nonce is the identity", ErrInvalidPoint)
	}

	e, err := scheme.Challenge(curve, r, agg.Key, msgHash)
	if err != nil {
		return nil, fmt.Errorf("failed to compute challenge: %w", err)
	}

	return &signingContext{
		agg:        agg,
		binding:    b,
		nonceTerms: terms,
		finalNonce: r,
		challenge:  e,
	}, nil
}

// verifyPartial checks s_i·G = R_i + e·a_i·P_i for the signer at index i.
func (sc *signingContext) verifyPartial(curve Curve, i int, s Scalar) bool {
	lhs := curve.BasePoint().Mul(s)
	rhs := sc.nonceTerms[i].Add(sc.agg.PublicKeys[i].Mul(sc.challenge.Mul(sc.agg.Coefficients[i])))
	return lhs.Equal(rhs)
}
