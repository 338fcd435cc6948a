// Package mailbox carries nonce commitments and partial signatures between
// the signers of a session and the coordinator that aggregates them.
//
// A mailbox holds, per session, one write-once slot per signer for each
// message kind. Await blocks until every slot of a kind is filled, the
// session is abandoned, or the context ends.
package mailbox

import (
	"context"
	"errors"
)

// Kind names a protocol round
type Kind string

const (
	KindNonces  Kind = "nonces"
	KindPartial Kind = "partial"
)

var (
	// ErrSessionNotFound is returned for a session that was never opened
	// or has expired.
	ErrSessionNotFound = errors.New("mailbox: session not found")

	// ErrSessionExists is returned when a session is reopened with a
	// different size.
	ErrSessionExists = errors.New("mailbox: session already open with a different size")

	// ErrSlotOutOfRange is returned for a slot outside [0, size).
	ErrSlotOutOfRange = errors.New("mailbox: slot out of range")

	// ErrSlotConflict is returned when a filled slot is posted again with a
	// different payload.
	ErrSlotConflict = errors.New("mailbox: slot already holds a different payload")

	// ErrAbandoned is returned by every operation on an abandoned session.
	ErrAbandoned = errors.New("mailbox: session abandoned")
)

// Mailbox is the session-keyed exchange used by participants and the
// coordinator. Implementations must be safe for concurrent use.
type Mailbox interface {
	// Open creates the session with size slots per kind. Opening an existing
	// session with the same size is a no-op.
	Open(ctx context.Context, sessionID string, size int) error

	// Post writes payload into slot. Reposting an identical payload is a
	// no-op; a different payload fails with ErrSlotConflict.
	Post(ctx context.Context, sessionID string, kind Kind, slot int, payload []byte) error

	// Await returns all payloads of kind in slot order once every slot is
	// filled.
	Await(ctx context.Context, sessionID string, kind Kind) ([][]byte, error)

	// Abandon marks the session abandoned and wakes every waiter.
	Abandon(ctx context.Context, sessionID string, reason string) error

	Close() error
}

// AbandonedError carries the reason a session was abandoned. It matches
// ErrAbandoned under errors.Is.
type AbandonedError struct {
	Reason string
}

func (e *AbandonedError) Error() string {
	return ErrAbandoned.Error() + ": " + e.Reason
}

func (e *AbandonedError) Is(target error) bool {
	return target == ErrAbandoned
}

func validKind(kind Kind) bool {
	return kind == KindNonces || kind == KindPartial
}
