package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
)

// Coordinator collects both rounds of a session from a mailbox, drives a
// schnorrkel.Session and returns the wire-format aggregate signature.
type Coordinator struct {
	curve   schnorrkel.Curve
	mailbox Mailbox
	logger  *zap.Logger
	metrics *Metrics
	scheme  schnorrkel.ChallengeScheme
	audit   schnorrkel.AuditEventHandler
}

// NewCoordinator creates a coordinator for signers on curve
func NewCoordinator(curve schnorrkel.Curve, mb Mailbox, opts ...Option) *Coordinator {
	o := buildOptions(opts)
	return &Coordinator{
		curve:   curve,
		mailbox: mb,
		logger:  o.logger.Named("coordinator"),
		metrics: o.metrics,
		scheme:  o.scheme,
		audit:   o.audit,
	}
}

// Collect opens sessionID, waits for every commitment and partial signature
// and aggregates them. Any failure, including ctx expiring, abandons both the
// session and the mailbox entry so participants stop waiting.
func (c *Coordinator) Collect(ctx context.Context, sessionID string, msgHash []byte, publicKeys []schnorrkel.Point) ([]byte, *schnorrkel.Session, error) {
	sopts := []schnorrkel.SessionOption{
		schnorrkel.WithSessionID(sessionID),
		schnorrkel.WithSessionAudit(c.audit),
	}
	if c.scheme != nil {
		sopts = append(sopts, schnorrkel.WithSessionScheme(c.scheme))
	}
	session, err := schnorrkel.NewSession(c.curve, msgHash, publicKeys, sopts...)
	if err != nil {
		return nil, nil, err
	}
	if err := c.mailbox.Open(ctx, sessionID, len(publicKeys)); err != nil {
		return nil, session, fmt.Errorf("failed to open session: %w", err)
	}
	c.metrics.opened()
	log := c.logger.With(zap.String("session_id", sessionID), zap.Int("signers", len(publicKeys)))
	log.Info("collecting signatures")

	encoded, err := c.collect(ctx, session)
	if err != nil {
		c.abandon(session, err)
		log.Warn("session abandoned", zap.Error(err), zap.Stringer("state", session.State()))
		return nil, session, err
	}
	c.metrics.aggregated()
	log.Info("aggregate signature ready")
	return encoded, session, nil
}

func (c *Coordinator) collect(ctx context.Context, session *schnorrkel.Session) ([]byte, error) {
	id := session.ID()

	start := time.Now()
	payloads, err := c.mailbox.Await(ctx, id, KindNonces)
	c.metrics.awaited(KindNonces, start)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for nonces: %w", err)
	}
	nonces, err := decodeNonces(c.curve, payloads)
	if err != nil {
		return nil, err
	}
	for i, n := range nonces {
		if err := session.AddNonces(i, n); err != nil {
			return nil, err
		}
	}
	if _, err := session.ComputeChallenge(); err != nil {
		return nil, err
	}

	start = time.Now()
	payloads, err = c.mailbox.Await(ctx, id, KindPartial)
	c.metrics.awaited(KindPartial, start)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for partial signatures: %w", err)
	}
	for i, raw := range payloads {
		p, err := schnorrkel.UnmarshalPartialSignature(c.curve, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid partial signature in slot %d: %w", i, err)
		}
		// A slot only accepts the partial of the signer it belongs to.
		if owner := session.KeyAggregation().IndexOf(p.PublicKey); owner != i {
			return nil, schnorrkel.ErrVerificationFailure.
				WithContext("slot", i).
				WithDetails("slot %d holds the partial signature of signer %d", i, owner)
		}
		if err := session.AddPartial(p); err != nil {
			return nil, err
		}
	}

	if _, err := session.Aggregate(); err != nil {
		return nil, err
	}
	return session.Encoded()
}

func (c *Coordinator) abandon(session *schnorrkel.Session, cause error) {
	reason := abandonReason(cause)
	c.metrics.abandoned(reason)
	if err := session.Abandon(cause); err != nil {
		c.logger.Debug("session already terminal", zap.String("session_id", session.ID()), zap.Error(err))
	}

	// The caller's context may already be done; the mailbox still needs to
	// hear about it.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.mailbox.Abandon(ctx, session.ID(), reason); err != nil && !errors.Is(err, ErrSessionNotFound) {
		c.logger.Warn("failed to abandon mailbox session", zap.String("session_id", session.ID()), zap.Error(err))
	}
}

// abandonReason maps a failure to the metric label and mailbox reason. A
// session abandoned by someone else keeps the reason they gave.
func abandonReason(err error) string {
	var abandoned *AbandonedError
	if errors.As(err, &abandoned) && abandoned.Reason != "" {
		return abandoned.Reason
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, schnorrkel.ErrChallengeMismatch):
		return "mismatch"
	case errors.Is(err, schnorrkel.ErrNonceReuse):
		return "nonce_reuse"
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	default:
		return "error"
	}
}
