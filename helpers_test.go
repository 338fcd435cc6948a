package schnorrkel

import (
	"errors"
	"math/rand/v2"
	"testing"
)

// seededReader returns a deterministic entropy source for reproducible tests.
func seededReader(seed byte) *rand.ChaCha8 {
	var s [32]byte
	for i := range s {
		s[i] = seed + byte(i)
	}
	return rand.NewChaCha8(s)
}

// constantReader yields the same byte forever.
type constantReader byte

func (c constantReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

// failingReader always errors.
type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy source unavailable")
}

// newSigners creates n signers on curve and their public keys in order.
func newSigners(t *testing.T, curve Curve, n int, opts ...SignerOption) ([]*Signer, []Point) {
	t.Helper()
	signers := make([]*Signer, n)
	keys := make([]Point, n)
	for i := range signers {
		s, err := GenerateSigner(curve, opts...)
		if err != nil {
			t.Fatalf("Failed to create signer %d: %v", i, err)
		}
		signers[i] = s
		keys[i] = s.PublicKey()
	}
	return signers, keys
}

// collectNonces asks every signer for its outstanding commitment.
func collectNonces(t *testing.T, signers []*Signer) []*PublicNonces {
	t.Helper()
	nonces := make([]*PublicNonces, len(signers))
	for i, s := range signers {
		n, err := s.PublicNonces()
		if err != nil {
			t.Fatalf("Failed to get nonces for signer %d: %v", i, err)
		}
		nonces[i] = n
	}
	return nonces
}

// signAll runs one full round and returns every partial signature.
func signAll(t *testing.T, signers []*Signer, keys []Point, msgHash []byte) []*PartialSignature {
	t.Helper()
	nonces := collectNonces(t, signers)
	partials := make([]*PartialSignature, len(signers))
	for i, s := range signers {
		p, err := s.Sign(msgHash, keys, nonces)
		if err != nil {
			t.Fatalf("Signer %d failed to sign: %v", i, err)
		}
		partials[i] = p
	}
	return partials
}

// signAndAggregate produces an aggregate signature from n fresh signers.
func signAndAggregate(t *testing.T, curve Curve, n int, msgHash []byte) (*AggregateSignature, []Point) {
	t.Helper()
	signers, keys := newSigners(t, curve, n)
	partials := signAll(t, signers, keys, msgHash)
	sig, err := SumPartialSignatures(curve, partials)
	if err != nil {
		t.Fatalf("Failed to sum partial signatures: %v", err)
	}
	return sig, keys
}

// recordingAuditHandler keeps every event it receives.
type recordingAuditHandler struct {
	keys        []*AuditEvent
	nonces      []*AuditEvent
	partials    []*AuditEvent
	reuses      []*AuditEvent
	transitions []*SessionTransitionEvent
	aggregates  []*AuditEvent
	failures    []*ValidationFailureEvent
}

func (h *recordingAuditHandler) OnKeyGenerated(e *AuditEvent)  { h.keys = append(h.keys, e) }
func (h *recordingAuditHandler) OnNonceEvent(e *AuditEvent)    { h.nonces = append(h.nonces, e) }
func (h *recordingAuditHandler) OnPartialSigned(e *AuditEvent) { h.partials = append(h.partials, e) }
func (h *recordingAuditHandler) OnNonceReuse(e *AuditEvent)    { h.reuses = append(h.reuses, e) }
func (h *recordingAuditHandler) OnSessionTransition(e *SessionTransitionEvent) {
	h.transitions = append(h.transitions, e)
}
func (h *recordingAuditHandler) OnAggregation(e *AuditEvent) { h.aggregates = append(h.aggregates, e) }
func (h *recordingAuditHandler) OnValidationFailure(e *ValidationFailureEvent) {
	h.failures = append(h.failures, e)
}
