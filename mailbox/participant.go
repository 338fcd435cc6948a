package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
)

// Option configures a Participant or Coordinator
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *Metrics
	scheme  schnorrkel.ChallengeScheme
	audit   schnorrkel.AuditEventHandler
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records traffic and outcomes in m
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithChallengeScheme sets the coordinator's challenge scheme. It must match
// the scheme the signers sign under.
func WithChallengeScheme(scheme schnorrkel.ChallengeScheme) Option {
	return func(o *options) { o.scheme = scheme }
}

// WithAudit forwards session transitions to h
func WithAudit(h schnorrkel.AuditEventHandler) Option {
	return func(o *options) { o.audit = h }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Participant runs one signer's side of a session over a mailbox.
type Participant struct {
	signer  *schnorrkel.Signer
	mailbox Mailbox
	logger  *zap.Logger
	metrics *Metrics
}

// NewParticipant binds signer to mb
func NewParticipant(signer *schnorrkel.Signer, mb Mailbox, opts ...Option) *Participant {
	o := buildOptions(opts)
	return &Participant{
		signer:  signer,
		mailbox: mb,
		logger:  o.logger.Named("participant"),
		metrics: o.metrics,
	}
}

// Run posts the signer's commitment, waits for everyone else's, signs and
// posts the partial signature. publicKeys is the ordered signer set; the
// signer's slot is its index in it. A local failure after the session is
// open abandons it so nobody waits for this signer's missing slot.
func (p *Participant) Run(ctx context.Context, sessionID string, msgHash []byte, publicKeys []schnorrkel.Point) (*schnorrkel.PartialSignature, error) {
	curve := p.signer.Curve()
	agg, err := schnorrkel.AggregateKeys(curve, publicKeys)
	if err != nil {
		return nil, err
	}
	slot := agg.IndexOf(p.signer.PublicKey())
	if slot < 0 {
		return nil, schnorrkel.ErrSignerNotInSet.WithContext("session_id", sessionID)
	}
	log := p.logger.With(zap.String("session_id", sessionID), zap.Int("slot", slot))

	if err := p.mailbox.Open(ctx, sessionID, len(publicKeys)); err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	partial, err := p.run(ctx, sessionID, slot, msgHash, publicKeys, log)
	if err != nil && !errors.Is(err, ErrAbandoned) {
		p.abandon(sessionID, err, log)
	}
	return partial, err
}

func (p *Participant) run(ctx context.Context, sessionID string, slot int, msgHash []byte, publicKeys []schnorrkel.Point, log *zap.Logger) (*schnorrkel.PartialSignature, error) {
	curve := p.signer.Curve()
	own, err := p.signer.PublicNonces()
	if err != nil {
		return nil, err
	}
	if err := p.mailbox.Post(ctx, sessionID, KindNonces, slot, own.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to post nonces: %w", err)
	}
	p.metrics.posted(KindNonces)
	log.Debug("posted nonce commitment", zap.String("fingerprint", own.Fingerprint()))

	start := time.Now()
	payloads, err := p.mailbox.Await(ctx, sessionID, KindNonces)
	p.metrics.awaited(KindNonces, start)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for nonces: %w", err)
	}
	nonces, err := decodeNonces(curve, payloads)
	if err != nil {
		return nil, err
	}

	partial, err := p.signer.Sign(msgHash, publicKeys, nonces)
	if err != nil {
		log.Warn("signing failed", zap.Error(err))
		return nil, err
	}
	data, err := partial.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := p.mailbox.Post(ctx, sessionID, KindPartial, slot, data); err != nil {
		return nil, fmt.Errorf("failed to post partial signature: %w", err)
	}
	p.metrics.posted(KindPartial)
	log.Info("posted partial signature")
	return partial, nil
}

// abandon tells the coordinator and the other signers to stop waiting for
// this signer.
func (p *Participant) abandon(sessionID string, cause error, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.mailbox.Abandon(ctx, sessionID, abandonReason(cause)); err != nil && !errors.Is(err, ErrSessionNotFound) {
		log.Warn("failed to abandon mailbox session", zap.Error(err))
	}
}

func decodeNonces(curve schnorrkel.Curve, payloads [][]byte) ([]*schnorrkel.PublicNonces, error) {
	nonces := make([]*schnorrkel.PublicNonces, len(payloads))
	for i, raw := range payloads {
		n, err := schnorrkel.PublicNoncesFromBytes(curve, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid nonces in slot %d: %w", i, err)
		}
		nonces[i] = n
	}
	return nonces, nil
}
