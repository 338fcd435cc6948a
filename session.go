package schnorrkel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// SessionState is a stage of one signing session
type SessionState int

const (
	SessionCreated SessionState = iota
	SessionNoncesPublished
	SessionChallengeComputed
	SessionPartiallySigned
	SessionAggregated
	SessionSubmitted
	SessionAbandoned
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionNoncesPublished:
		return "nonces_published"
	case SessionChallengeComputed:
		return "challenge_computed"
	case SessionPartiallySigned:
		return "partially_signed"
	case SessionAggregated:
		return "aggregated"
	case SessionSubmitted:
		return "submitted"
	case SessionAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible
func (s SessionState) Terminal() bool {
	return s == SessionSubmitted || s == SessionAbandoned
}

// Session tracks one message through the protocol from the coordinator's
// point of view:
//
//	Created → NoncesPublished → ChallengeComputed → PartiallySigned(k of N) →
//	Aggregated → Submitted
//
// Abandoned is reachable from every state before Aggregated. No partial
// signature is exposed as authorizing until Aggregate succeeds.
type Session struct {
	mu sync.Mutex

	id      string
	curve   Curve
	scheme  ChallengeScheme
	audit   AuditEventHandler
	msgHash []byte
	agg     *KeyAggregation

	state    SessionState
	nonces   []*PublicNonces
	ctx      *signingContext
	partials []*PartialSignature
	signed   int

	signature *AggregateSignature
	encoded   []byte
	abandoned error
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionID sets the session identifier instead of a random UUID
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithSessionScheme overrides the curve's default challenge scheme
func WithSessionScheme(scheme ChallengeScheme) SessionOption {
	return func(s *Session) { s.scheme = scheme }
}

// WithSessionAudit attaches an audit event handler
func WithSessionAudit(h AuditEventHandler) SessionOption {
	return func(s *Session) { s.audit = auditOrNull(h) }
}

// NewSession opens a session for msgHash over the ordered signer set.
func NewSession(curve Curve, msgHash []byte, publicKeys []Point, opts ...SessionOption) (*Session, error) {
	if len(msgHash) != 32 {
		return nil, ErrInvalidMessage.WithContext("length", len(msgHash))
	}
	agg, err := AggregateKeys(curve, publicKeys)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       uuid.NewString(),
		curve:    curve,
		audit:    &NullAuditHandler{},
		msgHash:  append([]byte(nil), msgHash...),
		agg:      agg,
		state:    SessionCreated,
		nonces:   make([]*PublicNonces, len(publicKeys)),
		partials: make([]*PartialSignature, len(publicKeys)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheme == nil {
		s.scheme = DefaultChallengeScheme(curve)
	}
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// MessageHash returns the 32-byte digest being signed
func (s *Session) MessageHash() []byte { return append([]byte(nil), s.msgHash...) }

// KeyAggregation returns the signer set aggregation
func (s *Session) KeyAggregation() *KeyAggregation { return s.agg }

// Address returns the account identifier of the signer set
func (s *Session) Address() (common.Address, error) { return s.agg.Address() }

// Size returns N
func (s *Session) Size() int { return len(s.agg.PublicKeys) }

// State returns the current state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Signed returns how many partial signatures have been accepted
func (s *Session) Signed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signed
}

// Nonces returns the commitments in signer order once all have arrived.
func (s *Session) Nonces() ([]*PublicNonces, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLive(); err != nil {
		return nil, err
	}
	if s.state == SessionCreated {
		return nil, ErrIncompleteQuorum.WithContext("session_id", s.id)
	}
	out := make([]*PublicNonces, len(s.nonces))
	copy(out, s.nonces)
	return out, nil
}

// AddNonces records signer i's commitment. The session moves to
// NoncesPublished once all N are present. Replacing a commitment is refused.
func (s *Session) AddNonces(i int, nonces *PublicNonces) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return err
	}
	if s.state != SessionCreated {
		return s.invalidTransition("add nonces")
	}
	if i < 0 || i >= len(s.nonces) {
		return ErrSignerNotInSet.WithContext("index", i)
	}
	if nonces == nil || nonces.K1 == nil || nonces.K2 == nil {
		return ErrInvalidInputLength.WithDetails("nonce commitment %d is incomplete", i)
	}
	if prev := s.nonces[i]; prev != nil {
		if prev.Equal(nonces) {
			return nil
		}
		return ErrNonceReuse.WithContext("index", i).WithDetails("signer %d already published a different commitment", i)
	}
	for j, other := range s.nonces {
		if other != nil && other.Equal(nonces) {
			return ErrDuplicateSigner.WithContext("index", i).WithDetails("commitment already published by signer %d", j)
		}
	}
	s.nonces[i] = nonces

	for _, n := range s.nonces {
		if n == nil {
			return nil
		}
	}
	s.transition(SessionNoncesPublished, nil)
	return nil
}

// ComputeChallenge derives R and e from the full commitment set.
func (s *Session) ComputeChallenge() (Scalar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return nil, err
	}
	if s.state != SessionNoncesPublished {
		return nil, s.invalidTransition("compute challenge")
	}
	sc, err := newSigningContext(s.curve, s.scheme, s.agg, s.msgHash, s.nonces)
	if err != nil {
		return nil, err
	}
	s.ctx = sc
	s.transition(SessionChallengeComputed, nil)
	return sc.challenge, nil
}

// Challenge returns e once computed
func (s *Session) Challenge() (Scalar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return nil, ErrInvalidState.WithContext("state", s.state.String())
	}
	return s.ctx.challenge, nil
}

// AddPartial accepts one signer's partial signature. A partial computed
// under a different challenge, final nonce or aggregate key abandons the
// session with ErrChallengeMismatch. A response that does not satisfy
// s_i·G = R_i + e·a_i·P_i is rejected with ErrVerificationFailure.
func (s *Session) AddPartial(p *PartialSignature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return err
	}
	if s.state != SessionChallengeComputed && s.state != SessionPartiallySigned {
		return s.invalidTransition("add partial signature")
	}
	if p == nil || p.PublicKey == nil || p.Signature == nil || p.Challenge == nil {
		return ErrInvalidInputLength.WithDetails("partial signature is incomplete")
	}

	i := s.agg.IndexOf(p.PublicKey)
	if i < 0 {
		return ErrSignerNotInSet.WithContext("public_key", p.PublicKey.String())
	}
	if s.partials[i] != nil {
		return ErrDuplicateSigner.WithContext("index", i).WithDetails("signer %d already contributed", i)
	}

	if !p.Challenge.Equal(s.ctx.challenge) ||
		!pointsAgree(p.FinalNonce, s.ctx.finalNonce) ||
		!pointsAgree(p.AggregateKey, s.agg.Key) {
		err := ErrChallengeMismatch.WithContext("session_id", s.id).WithContext("index", i)
		s.abandonLocked(err)
		return err
	}
	if !s.ctx.verifyPartial(s.curve, i, p.Signature) {
		return ErrVerificationFailure.WithContext("index", i).WithDetails("partial signature from signer %d is invalid", i)
	}

	s.partials[i] = p
	s.signed++
	s.transition(SessionPartiallySigned, nil)
	return nil
}

// Aggregate sums all N partials, verifies the result and moves to Aggregated.
// A self-verification failure abandons the session.
func (s *Session) Aggregate() (*AggregateSignature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return nil, err
	}
	if s.state == SessionAggregated {
		return s.signature, nil
	}
	if s.state != SessionPartiallySigned {
		return nil, s.invalidTransition("aggregate")
	}
	if s.signed != len(s.partials) {
		return nil, ErrIncompleteQuorum.
			WithContext("signed", s.signed).
			WithContext("expected", len(s.partials))
	}

	sig, err := SumPartialSignatures(s.curve, s.partials)
	if err != nil {
		s.abandonLocked(err)
		return nil, err
	}
	if err := sig.Verify(s.curve, s.scheme, s.msgHash); err != nil {
		s.reportAggregation(err)
		s.abandonLocked(err)
		return nil, err
	}
	s.reportAggregation(nil)
	if _, ok := s.curve.(*Secp256k1Curve); ok {
		encoded, err := sig.Encode()
		if err != nil {
			s.abandonLocked(err)
			return nil, err
		}
		s.encoded = encoded
	}

	s.signature = sig
	s.transition(SessionAggregated, nil)
	return sig, nil
}

// Encoded returns the wire-format signature once aggregated.
func (s *Session) Encoded() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionAggregated && s.state != SessionSubmitted {
		return nil, ErrInvalidState.WithContext("state", s.state.String())
	}
	if s.encoded == nil {
		return nil, ErrUnsupportedCurve.WithDetails("wire encoding needs secp256k1")
	}
	return append([]byte(nil), s.encoded...), nil
}

// MarkSubmitted records that the signature was handed to the backend.
func (s *Session) MarkSubmitted() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return err
	}
	if s.state != SessionAggregated {
		return s.invalidTransition("mark submitted")
	}
	s.transition(SessionSubmitted, nil)
	return nil
}

// Abandon ends the session. Only states before Aggregated can be abandoned.
func (s *Session) Abandon(reason error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionAbandoned {
		return nil
	}
	if s.state == SessionAggregated || s.state == SessionSubmitted {
		return s.invalidTransition("abandon")
	}
	s.abandonLocked(reason)
	return nil
}

// Err returns the reason the session was abandoned, or nil
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}

func (s *Session) abandonLocked(reason error) {
	if reason == nil {
		reason = ErrSessionAbandoned
	}
	s.abandoned = reason
	s.transition(SessionAbandoned, reason)
}

func (s *Session) reportAggregation(err error) {
	b := NewAuditEventBuilder(AuditEventAggregation, ReasonProtocolStep).
		WithSession(s.id).
		WithCurve(s.curve.Name()).
		WithPublicKey(s.agg.Key).
		WithParticipantCount(len(s.agg.PublicKeys))
	if err != nil {
		b.WithError(err)
	}
	s.audit.OnAggregation(b.Build())
}

func (s *Session) checkLive() error {
	if s.state == SessionAbandoned {
		return ErrSessionAbandoned.WithCause(s.abandoned).WithContext("session_id", s.id)
	}
	return nil
}

func (s *Session) invalidTransition(op string) error {
	return ErrInvalidState.
		WithContext("session_id", s.id).
		WithContext("state", s.state.String()).
		WithDetails("cannot %s", op)
}

func (s *Session) transition(to SessionState, cause error) {
	from := s.state
	s.state = to

	reason := ReasonProtocolStep
	switch {
	case cause == nil:
	case errors.Is(cause, ErrChallengeMismatch):
		reason = ReasonMismatch
	case errors.Is(cause, context.DeadlineExceeded):
		reason = ReasonTimeout
	default:
		reason = ReasonManualTrigger
	}
	b := NewAuditEventBuilder(AuditEventSessionTransition, reason).
		WithSession(s.id).
		WithCurve(s.curve.Name()).
		WithParticipantCount(len(s.agg.PublicKeys)).
		WithMetadata("signed", s.signed)
	if cause != nil {
		b = b.WithError(cause)
	}
	s.audit.OnSessionTransition(b.BuildSessionTransition(from, to))
}
