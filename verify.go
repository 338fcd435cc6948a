package schnorrkel

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifySignature is the reference check: R' = s·G − e·X, e' = H(R', X, m),
// accept iff e' = e.
func VerifySignature(curve Curve, scheme ChallengeScheme, aggregateKey Point, challenge, signature Scalar, msgHash []byte) error {
	if aggregateKey == nil || challenge == nil || signature == nil {
		return ErrVerificationFailure.WithDetails("incomplete signature")
	}
	if len(msgHash) != 32 {
		return ErrInvalidMessage.WithContext("length", len(msgHash))
	}
	if aggregateKey.IsIdentity() {
		return ErrVerificationFailure.WithDetails("aggregate key at infinity")
	}

	r := curve.BasePoint().Mul(signature).Sub(aggregateKey.Mul(challenge))
	if r.IsIdentity() {
		return ErrVerificationFailure.WithDetails("recovered nonce at infinity")
	}

	expected, err := scheme.Challenge(curve, r, aggregateKey, msgHash)
	if err != nil {
		return ErrVerificationFailure.WithCause(err)
	}
	if !expected.Equal(challenge) {
		return ErrVerificationFailure
	}
	return nil
}

// Verify runs VerifySignature over the aggregate's fields
func (sig *AggregateSignature) Verify(curve Curve, scheme ChallengeScheme, msgHash []byte) error {
	return VerifySignature(curve, scheme, sig.AggregateKey, sig.Challenge, sig.Signature, msgHash)
}

// VerifyEncoded checks a wire-encoded signature the way the validation
// contract does, through ecrecover:
//
//	sp = −s·px, ep = −e·px (mod n)
//	R  = ecrecover(sp, parity, px, ep) = s·G − e·X
//	e == keccak256(address(R) ‖ parity ‖ px ‖ msgHash)
//
// On success it returns the account identifier derived from px.
func VerifyEncoded(sig []byte, msgHash []byte) (common.Address, error) {
	if len(msgHash) != 32 {
		return common.Address{}, ErrInvalidMessage.WithContext("length", len(msgHash))
	}
	decoded, err := DecodeSignature(sig)
	if err != nil {
		return common.Address{}, err
	}

	x := decoded.AggregateKey.(*Secp256k1Point)
	px := x.XBytes()
	parity := parityByte(x)

	curve := NewSecp256k1Curve()
	pxScalar, err := curve.ScalarFromBytes(px)
	if err != nil {
		return common.Address{}, ErrVerificationFailure.WithCause(err)
	}
	sp := decoded.Signature.Mul(pxScalar).Negate()
	ep := decoded.Challenge.Mul(pxScalar).Negate()
	if sp.IsZero() {
		return common.Address{}, ErrVerificationFailure.WithDetails("sp is zero")
	}

	rsv := make([]byte, 0, crypto.SignatureLength)
	rsv = append(rsv, px...)
	rsv = append(rsv, ep.Bytes()...)
	rsv = append(rsv, parity-27)

	recovered, err := crypto.Ecrecover(sp.Bytes(), rsv)
	if err != nil {
		return common.Address{}, ErrVerificationFailure.WithCause(fmt.Errorf("ecrecover: %w", err))
	}
	nonceAddress := Keccak256(recovered[1:])[12:]

	expected := Keccak256(nonceAddress, []byte{parity}, px, msgHash)
	if !bytes.Equal(expected, decoded.Challenge.Bytes()) {
		return common.Address{}, ErrVerificationFailure
	}
	return addressFromX(px), nil
}

// VerifyForAccount additionally requires the signature's aggregate key to
// map onto the account's recorded identifier.
func VerifyForAccount(sig []byte, msgHash []byte, account common.Address) error {
	addr, err := VerifyEncoded(sig, msgHash)
	if err != nil {
		return err
	}
	if addr != account {
		return ErrVerificationFailure.
			WithDetails("signature belongs to %s", addr.Hex()).
			WithContext("account", account.Hex())
	}
	return nil
}
