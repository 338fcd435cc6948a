package schnorrkel

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// EncodedSignatureLength is the size of abi.encode(bytes32, bytes32, bytes32, uint8).
const EncodedSignatureLength = 4 * 32

var signatureArguments = mustSignatureArguments()

func mustSignatureArguments() abi.Arguments {
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		panic(err)
	}
	uint8Ty, err := abi.NewType("uint8", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "px", Type: bytes32Ty},
		{Name: "e", Type: bytes32Ty},
		{Name: "s", Type: bytes32Ty},
		{Name: "parity", Type: uint8Ty},
	}
}

// SumPartialSignatures adds every partial response mod n. All partials must
// agree on aggregate key, challenge and final nonce; any disagreement is a
// hard ErrChallengeMismatch and no signature is produced.
func SumPartialSignatures(curve Curve, partials []*PartialSignature) (*AggregateSignature, error) {
	if len(partials) == 0 {
		return nil, ErrInvalidInputLength.WithDetails("no partial signatures")
	}

	first := partials[0]
	if first == nil || first.Signature == nil || first.Challenge == nil {
		return nil, ErrInvalidInputLength.WithDetails("partial signature 0 is incomplete")
	}

	sum := curve.ScalarZero()
	for i, p := range partials {
		if p == nil || p.Signature == nil || p.Challenge == nil {
			return nil, ErrInvalidInputLength.WithDetails("partial signature %d is incomplete", i)
		}
		if !p.Challenge.Equal(first.Challenge) {
			return nil, ErrChallengeMismatch.WithContext("index", i).WithDetails("challenge differs")
		}
		if !pointsAgree(p.FinalNonce, first.FinalNonce) {
			return nil, ErrChallengeMismatch.WithContext("index", i).WithDetails("final nonce differs")
		}
		if !pointsAgree(p.AggregateKey, first.AggregateKey) {
			return nil, ErrChallengeMismatch.WithContext("index", i).WithDetails("aggregate key differs")
		}
		sum = sum.Add(p.Signature)
	}

	return &AggregateSignature{
		AggregateKey: first.AggregateKey,
		Challenge:    first.Challenge,
		Signature:    sum,
		FinalNonce:   first.FinalNonce,
	}, nil
}

func pointsAgree(a, b Point) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// EncodeSignature produces the verifier wire format
//
//	abi.encode(bytes32 px, bytes32 e, bytes32 s, uint8 parity)
//
// where parity is 27 for an even aggregate key y-coordinate and 28 for odd.
func EncodeSignature(aggregateKey Point, challenge, signature Scalar) ([]byte, error) {
	x, ok := aggregateKey.(*Secp256k1Point)
	if !ok {
		return nil, ErrUnsupportedCurve.WithDetails("wire encoding needs secp256k1")
	}
	if x.IsIdentity() {
		return nil, fmt.Errorf("%w: aggregate key at infinity", ErrInvalidPoint)
	}

	var px, e, s [32]byte
	copy(px[:], x.XBytes())
	copy(e[:], challenge.Bytes())
	copy(s[:], signature.Bytes())

	packed, err := signatureArguments.Pack(px, e, s, parityByte(x))
	if err != nil {
		return nil, fmt.Errorf("failed to abi-encode signature: %w", err)
	}
	return packed, nil
}

// Encode is EncodeSignature over the aggregate's fields
func (sig *AggregateSignature) Encode() ([]byte, error) {
	return EncodeSignature(sig.AggregateKey, sig.Challenge, sig.Signature)
}

// DecodeSignature is the strict inverse of EncodeSignature. It rejects any
// length other than 128 bytes, a parity word that is not exactly 27 or 28,
// scalars outside [0, n) and an x-coordinate that is not on the curve.
func DecodeSignature(data []byte) (*AggregateSignature, error) {
	if len(data) != EncodedSignatureLength {
		return nil, ErrInvalidSignatureEncoding.WithDetails("expected %d bytes, got %d", EncodedSignatureLength, len(data))
	}

	for _, b := range data[3*32 : EncodedSignatureLength-1] {
		if b != 0 {
			return nil, ErrInvalidSignatureEncoding.WithDetails("parity word is not zero-padded")
		}
	}

	values, err := signatureArguments.Unpack(data)
	if err != nil {
		return nil, ErrInvalidSignatureEncoding.WithCause(err)
	}
	px := values[0].([32]byte)
	eBytes := values[1].([32]byte)
	sBytes := values[2].([32]byte)
	parity := values[3].(uint8)

	if parity != 27 && parity != 28 {
		return nil, ErrInvalidSignatureEncoding.WithDetails("parity %d", parity)
	}

	curve := NewSecp256k1Curve()
	compressed := make([]byte, 0, 33)
	compressed = append(compressed, parity-27+2)
	compressed = append(compressed, px[:]...)
	x, err := curve.PointFromBytes(compressed)
	if err != nil {
		return nil, ErrInvalidSignatureEncoding.WithCause(err)
	}

	e, err := strictScalar(curve, eBytes[:])
	if err != nil {
		return nil, ErrInvalidSignatureEncoding.WithDetails("challenge out of range")
	}
	s, err := strictScalar(curve, sBytes[:])
	if err != nil {
		return nil, ErrInvalidSignatureEncoding.WithDetails("signature out of range")
	}

	return &AggregateSignature{AggregateKey: x, Challenge: e, Signature: s}, nil
}

// strictScalar parses a canonical scalar, allowing zero but not overflow.
func strictScalar(curve Curve, b []byte) (Scalar, error) {
	if err := curve.ValidateScalar(b); err != nil && err != ErrScalarZero {
		return nil, err
	}
	return curve.ScalarFromBytes(b)
}
