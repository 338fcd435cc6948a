package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryMailbox keeps sessions in process. It serves tests and
// single-process deployments where every signer shares one binary.
type MemoryMailbox struct {
	sessions *xsync.MapOf[string, *memorySession]
}

type memorySession struct {
	mu        sync.Mutex
	size      int
	slots     map[Kind][][]byte
	filled    map[Kind]int
	changed   chan struct{}
	abandoned string
}

var _ Mailbox = (*MemoryMailbox)(nil)

// NewMemoryMailbox creates an empty in-memory mailbox
func NewMemoryMailbox() *MemoryMailbox {
	return &MemoryMailbox{sessions: xsync.NewMapOf[string, *memorySession]()}
}

func (m *MemoryMailbox) Open(_ context.Context, sessionID string, size int) error {
	if size < 1 {
		return fmt.Errorf("mailbox: invalid session size %d", size)
	}
	s, _ := m.sessions.LoadOrCompute(sessionID, func() *memorySession {
		return &memorySession{
			size: size,
			slots: map[Kind][][]byte{
				KindNonces:  make([][]byte, size),
				KindPartial: make([][]byte, size),
			},
			filled:  make(map[Kind]int),
			changed: make(chan struct{}),
		}
	})
	if s.size != size {
		return ErrSessionExists
	}
	return nil
}

func (m *MemoryMailbox) Post(_ context.Context, sessionID string, kind Kind, slot int, payload []byte) error {
	if !validKind(kind) {
		return fmt.Errorf("mailbox: unknown kind %q", kind)
	}
	s, ok := m.sessions.Load(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abandoned != "" {
		return &AbandonedError{Reason: s.abandoned}
	}
	if slot < 0 || slot >= s.size {
		return ErrSlotOutOfRange
	}
	if prev := s.slots[kind][slot]; prev != nil {
		if bytes.Equal(prev, payload) {
			return nil
		}
		return ErrSlotConflict
	}
	s.slots[kind][slot] = append([]byte(nil), payload...)
	s.filled[kind]++
	s.notifyLocked()
	return nil
}

func (m *MemoryMailbox) Await(ctx context.Context, sessionID string, kind Kind) ([][]byte, error) {
	if !validKind(kind) {
		return nil, fmt.Errorf("mailbox: unknown kind %q", kind)
	}
	s, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	for {
		s.mu.Lock()
		if s.abandoned != "" {
			reason := s.abandoned
			s.mu.Unlock()
			return nil, &AbandonedError{Reason: reason}
		}
		if s.filled[kind] == s.size {
			out := make([][]byte, s.size)
			for i, p := range s.slots[kind] {
				out[i] = append([]byte(nil), p...)
			}
			s.mu.Unlock()
			return out, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *MemoryMailbox) Abandon(_ context.Context, sessionID string, reason string) error {
	s, ok := m.sessions.Load(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if reason == "" {
		reason = "abandoned"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned == "" {
		s.abandoned = reason
		s.notifyLocked()
	}
	return nil
}

// Remove drops a finished session
func (m *MemoryMailbox) Remove(sessionID string) {
	m.sessions.Delete(sessionID)
}

// Sessions returns the number of open sessions
func (m *MemoryMailbox) Sessions() int {
	return m.sessions.Size()
}

func (m *MemoryMailbox) Close() error {
	m.sessions.Clear()
	return nil
}

// notifyLocked wakes every waiter by closing the current channel.
func (s *memorySession) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
