package schnorrkel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Signer is one key holder. It owns its key pair and the secret halves of
// the nonce commitments it has published, and produces partial signatures.
// Signing attempts are serialized so a commitment is consumed at most once.
type Signer struct {
	mu sync.Mutex

	curve   Curve
	keyPair *KeyPair
	scheme  ChallengeScheme
	nonces  NonceStore
	audit   AuditEventHandler

	current *PublicNonces
}

// SignerOption configures a Signer
type SignerOption func(*Signer)

// WithChallengeScheme overrides the curve's default challenge scheme
func WithChallengeScheme(scheme ChallengeScheme) SignerOption {
	return func(s *Signer) { s.scheme = scheme }
}

// WithNonceStore replaces the in-memory nonce store, typically with a
// persistent one so consumed commitments survive restarts.
func WithNonceStore(store NonceStore) SignerOption {
	return func(s *Signer) { s.nonces = store }
}

// WithAuditHandler attaches an audit event handler
func WithAuditHandler(h AuditEventHandler) SignerOption {
	return func(s *Signer) { s.audit = auditOrNull(h) }
}

// NewSigner wraps a key pair
func NewSigner(kp *KeyPair, opts ...SignerOption) (*Signer, error) {
	if kp == nil || kp.private == nil {
		return nil, ErrInvalidPrivateKey.WithDetails("key pair is nil")
	}
	s := &Signer{
		curve:   kp.curve,
		keyPair: kp,
		audit:   &NullAuditHandler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheme == nil {
		s.scheme = DefaultChallengeScheme(s.curve)
	}
	if s.nonces == nil {
		s.nonces = NewMemoryNonceStore()
	}

	s.audit.OnKeyGenerated(NewAuditEventBuilder(AuditEventKeyGenerated, ReasonSignerInit).
		WithCurve(s.curve.Name()).
		WithPublicKey(kp.public).
		Build())
	return s, nil
}

// GenerateSigner creates a signer with a fresh key pair
func GenerateSigner(curve Curve, opts ...SignerOption) (*Signer, error) {
	kp, err := GenerateKeyPair(curve)
	if err != nil {
		return nil, err
	}
	return NewSigner(kp, opts...)
}

// PublicKey returns the signer's public point
func (s *Signer) PublicKey() Point { return s.keyPair.public }

// KeyPair returns the signer's key pair
func (s *Signer) KeyPair() *KeyPair { return s.keyPair }

// Curve returns the signer's curve engine
func (s *Signer) Curve() Curve { return s.curve }

// Scheme returns the challenge scheme the signer signs under
func (s *Signer) Scheme() ChallengeScheme { return s.scheme }

// PublicNonces returns the outstanding commitment, generating a fresh one if
// none is outstanding (first use, or the last one was consumed by Sign).
func (s *Signer) PublicNonces() (*PublicNonces, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return s.current, nil
	}
	return s.newNoncesLocked(ReasonNewSession)
}

// RegenerateNonces discards the outstanding commitment and publishes a new
// one. The discarded commitment can never sign again, so any partial
// signature computed against it is useless for a session built on the new one.
func (s *Signer) RegenerateNonces() (*PublicNonces, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		fp := s.current.Fingerprint()
		if err := s.nonces.Discard(fp); err != nil {
			return nil, fmt.Errorf("failed to discard nonce commitment: %w", err)
		}
		s.audit.OnNonceEvent(NewAuditEventBuilder(AuditEventNonceDiscarded, ReasonManualTrigger).
			WithPublicKey(s.keyPair.public).
			WithFingerprint(fp).
			Build())
		s.current = nil
	}
	return s.newNoncesLocked(ReasonManualTrigger)
}

func (s *Signer) newNoncesLocked(reason AuditEventReason) (*PublicNonces, error) {
	secret, public, err := generateNonces(s.curve)
	if err != nil {
		return nil, err
	}
	fp := public.Fingerprint()
	if err := s.nonces.Put(fp, secret); err != nil {
		secret.Zeroize()
		return nil, fmt.Errorf("failed to store nonce commitment: %w", err)
	}
	s.current = public

	s.audit.OnNonceEvent(NewAuditEventBuilder(AuditEventNonceGenerated, reason).
		WithPublicKey(s.keyPair.public).
		WithFingerprint(fp).
		Build())
	return public, nil
}

// Sign computes this signer's partial signature over msgHash for the ordered
// signer set publicKeys with the matching commitments publicNonces.
//
//	X   = AggregateKeys(publicKeys)
//	b   = keccak256(X ‖ msgHash ‖ ΣK1 ‖ ΣK2) mod n
//	R   = Σ (K1_i + b·K2_i)
//	e   = scheme(R, X, msgHash)
//	s_i = k1 + b·k2 + e·a_i·x_i
//
// The commitment at this signer's index must be one it issued and has not
// consumed. It is consumed before the response is computed, so it is burnt
// even if a later step fails.
func (s *Signer) Sign(msgHash []byte, publicKeys []Point, publicNonces []*PublicNonces) (*PartialSignature, error) {
	if len(publicKeys) == 0 || len(publicKeys) != len(publicNonces) {
		err := ErrInvalidInputLength.
			WithContext("public_keys", len(publicKeys)).
			WithContext("public_nonces", len(publicNonces))
		s.reportValidation("signer_set", err, len(publicKeys))
		return nil, err
	}
	if len(msgHash) != 32 {
		err := ErrInvalidMessage.WithContext("length", len(msgHash))
		s.reportValidation("message", err, len(publicKeys))
		return nil, err
	}

	agg, err := AggregateKeys(s.curve, publicKeys)
	if err != nil {
		s.reportValidation("signer_set", err, len(publicKeys))
		return nil, err
	}
	if v := ValidateSigningInputs(s.curve, msgHash, publicKeys, publicNonces); !v.Valid {
		err := v.Err(ErrInvalidInputLength)
		s.reportValidation("nonce", err, len(publicKeys))
		return nil, err
	}
	index := agg.IndexOf(s.keyPair.public)
	if index < 0 {
		err := ErrSignerNotInSet.WithContext("public_key", s.keyPair.public.String())
		s.reportValidation("signer_set", err, len(publicKeys))
		return nil, err
	}

	sc, err := newSigningContext(s.curve, s.scheme, agg, msgHash, publicNonces)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	own := publicNonces[index]
	fp := own.Fingerprint()
	secret, err := s.nonces.Consume(fp)
	if err != nil {
		switch {
		case errors.Is(err, ErrNonceReuse):
			s.audit.OnNonceReuse(NewAuditEventBuilder(AuditEventNonceReuse, ReasonSigning).
				WithPublicKey(s.keyPair.public).
				WithFingerprint(fp).
				WithError(err).
				Build())
			return nil, err
		case errors.Is(err, ErrNonceNotFound):
			err := ErrSignerNotInSet.WithCause(err).WithDetails("commitment at index %d was not issued by this signer", index)
			s.reportValidation("nonce", err, len(publicKeys))
			return nil, err
		default:
			return nil, fmt.Errorf("failed to consume nonce commitment: %w", err)
		}
	}
	defer secret.Zeroize()
	if s.current != nil && s.current.Equal(own) {
		s.current = nil
	}
	k1, k2, err := openNonces(s.curve, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce commitment: %w", err)
	}
	defer ZeroizeScalarSlice([]Scalar{k1, k2})

	// s_i = k1 + b·k2 + e·a_i·x_i
	a := agg.Coefficients[index]
	response := k1.
		Add(sc.binding.Mul(k2)).
		Add(sc.challenge.Mul(a).Mul(s.keyPair.private))

	s.audit.OnPartialSigned(NewAuditEventBuilder(AuditEventPartialSigned, ReasonSigning).
		WithCurve(s.curve.Name()).
		WithPublicKey(s.keyPair.public).
		WithFingerprint(fp).
		WithParticipantCount(len(publicKeys)).
		Build())

	return &PartialSignature{
		PublicKey:    s.keyPair.public,
		AggregateKey: agg.Key,
		Signature:    response,
		Challenge:    sc.challenge,
		FinalNonce:   sc.finalNonce,
	}, nil
}

// AggregateAddress returns the account identifier for publicKeys.
func (s *Signer) AggregateAddress(publicKeys []Point) (common.Address, error) {
	agg, err := AggregateKeys(s.curve, publicKeys)
	if err != nil {
		return common.Address{}, err
	}
	return agg.Address()
}

func (s *Signer) reportValidation(kind string, err error, n int) {
	s.audit.OnValidationFailure(NewAuditEventBuilder(AuditEventValidationFailure, ReasonValidationError).
		WithPublicKey(s.keyPair.public).
		WithParticipantCount(n).
		WithError(err).
		BuildValidationFailure(kind, err.Error(), nil))
}
