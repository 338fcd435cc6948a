package schnorrkel

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// PartialSignature is one signer's response for one session. It is only
// meaningful against the aggregate key, challenge and final nonce it carries
// and never authorizes anything on its own.
type PartialSignature struct {
	PublicKey    Point  // signer that produced the response
	AggregateKey Point  // X for the signer set it was computed against
	Signature    Scalar // s_i
	Challenge    Scalar // e, identical across a session
	FinalNonce   Point  // R, identical across a session
}

// AggregateSignature is the summed response together with the values the
// verifier needs to recompute the challenge.
type AggregateSignature struct {
	AggregateKey Point
	Challenge    Scalar
	Signature    Scalar
	FinalNonce   Point // nil when decoded from the wire format
}

// Zeroize clears the scalar components of the partial signature
func (p *PartialSignature) Zeroize() {
	if p.Signature != nil {
		p.Signature.Zeroize()
	}
}

// MarshalBinary encodes P ‖ X ‖ R ‖ e ‖ s for transport between participants.
func (p *PartialSignature) MarshalBinary() ([]byte, error) {
	if p.PublicKey == nil || p.AggregateKey == nil || p.FinalNonce == nil || p.Challenge == nil || p.Signature == nil {
		return nil, ErrInvalidInputLength.WithDetails("partial signature is incomplete")
	}
	var out []byte
	out = append(out, p.PublicKey.CompressedBytes()...)
	out = append(out, p.AggregateKey.CompressedBytes()...)
	out = append(out, p.FinalNonce.CompressedBytes()...)
	out = append(out, p.Challenge.Bytes()...)
	out = append(out, p.Signature.Bytes()...)
	return out, nil
}

// UnmarshalPartialSignature is the inverse of PartialSignature.MarshalBinary
func UnmarshalPartialSignature(curve Curve, data []byte) (*PartialSignature, error) {
	ps, ss := curve.PointSize(), curve.ScalarSize()
	if len(data) != 3*ps+2*ss {
		return nil, ErrInvalidInputLength.WithDetails("partial signature must be %d bytes, got %d", 3*ps+2*ss, len(data))
	}

	points := make([]Point, 3)
	for i := range points {
		p, err := curve.PointFromBytes(data[i*ps : (i+1)*ps])
		if err != nil {
			return nil, fmt.Errorf("failed to parse point %d: %w", i, err)
		}
		points[i] = p
	}
	off := 3 * ps
	e, err := strictScalar(curve, data[off:off+ss])
	if err != nil {
		return nil, fmt.Errorf("failed to parse challenge: %w", err)
	}
	s, err := strictScalar(curve, data[off+ss:])
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &PartialSignature{
		PublicKey:    points[0],
		AggregateKey: points[1],
		FinalNonce:   points[2],
		Challenge:    e,
		Signature:    s,
	}, nil
}

// ParsePublicKey decodes a hex-encoded compressed point
func ParsePublicKey(curve Curve, s string) (Point, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, ErrInvalidPublicKey.WithCause(err)
	}
	p, err := curve.PointFromBytes(b)
	if err != nil {
		return nil, ErrInvalidPublicKey.WithCause(err)
	}
	return p, nil
}
