package adapters

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
	"github.com/aa-schnorr/schnorrkel/mailbox"
)

// SmartAccountBackend is the account-abstraction pipeline: it builds the
// user operation, hashes it and submits it with a signature.
type SmartAccountBackend interface {
	UserOpHash(ctx context.Context) ([]byte, error)
	SubmitSignature(ctx context.Context, signature []byte) error
}

// Authorize signs the backend's pending user operation with module and the
// partners' partial signatures, then submits the aggregate.
func Authorize(ctx context.Context, backend SmartAccountBackend, module *ValidationModule, partners []*schnorrkel.PartialSignature) error {
	hash, err := backend.UserOpHash(ctx)
	if err != nil {
		return fmt.Errorf("failed to get user operation hash: %w", err)
	}
	sig, err := module.SignUserOpHash(ctx, hash, partners)
	if err != nil {
		return err
	}
	if err := backend.SubmitSignature(ctx, sig); err != nil {
		return fmt.Errorf("failed to submit signature: %w", err)
	}
	return nil
}

// AuthorizeSession gathers both rounds through coord for the backend's
// pending user operation, submits the aggregate and marks the session
// submitted. The signers run mailbox.Participant against the same session.
func AuthorizeSession(ctx context.Context, backend SmartAccountBackend, coord *mailbox.Coordinator, sessionID string, publicKeys []schnorrkel.Point, logger *zap.Logger) (*schnorrkel.Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	hash, err := backend.UserOpHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user operation hash: %w", err)
	}
	sig, session, err := coord.Collect(ctx, sessionID, hash, publicKeys)
	if err != nil {
		return session, err
	}
	if err := backend.SubmitSignature(ctx, sig); err != nil {
		return session, fmt.Errorf("failed to submit signature: %w", err)
	}
	if err := session.MarkSubmitted(); err != nil {
		return session, err
	}
	logger.Info("user operation authorized", zap.String("session_id", sessionID))
	return session, nil
}
