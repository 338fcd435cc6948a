package mailbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRedisPrefix  = "schnorrkel"
	defaultRedisTTL     = 10 * time.Minute
	defaultPollInterval = 50 * time.Millisecond

	fieldSize      = "size"
	fieldAbandoned = "abandoned"
)

// RedisMailbox shares sessions between processes through Redis hashes:
//
//	<prefix>:session:<id>:meta     size, abandoned
//	<prefix>:session:<id>:nonces   slot -> payload
//	<prefix>:session:<id>:partial  slot -> payload
//
// Slots are written with HSETNX so the first writer wins. Every key carries
// the configured TTL, refreshed on each write.
type RedisMailbox struct {
	client       redisClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

var _ Mailbox = (*RedisMailbox)(nil)

// NewRedisMailbox connects to Redis and returns a mailbox on top of it.
func NewRedisMailbox(opts RedisOptions, logger *zap.Logger) (*RedisMailbox, error) {
	client, err := newGoRedisClient(opts)
	if err != nil {
		return nil, err
	}
	return newRedisMailbox(client, opts, logger), nil
}

func newRedisMailbox(client redisClient, opts RedisOptions, logger *zap.Logger) *RedisMailbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &RedisMailbox{
		client:       client,
		prefix:       opts.Prefix,
		ttl:          opts.TTL,
		pollInterval: opts.PollInterval,
		logger:       logger.Named("mailbox.redis"),
	}
	if m.prefix == "" {
		m.prefix = defaultRedisPrefix
	}
	if m.ttl <= 0 {
		m.ttl = defaultRedisTTL
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	return m
}

func (m *RedisMailbox) key(sessionID, part string) string {
	return fmt.Sprintf("%s:session:%s:%s", m.prefix, sessionID, part)
}

func (m *RedisMailbox) touch(ctx context.Context, sessionID string) error {
	for _, part := range []string{"meta", string(KindNonces), string(KindPartial)} {
		if err := m.client.Expire(ctx, m.key(sessionID, part), m.ttl); err != nil {
			return fmt.Errorf("failed to refresh ttl: %w", err)
		}
	}
	return nil
}

func (m *RedisMailbox) Open(ctx context.Context, sessionID string, size int) error {
	if size < 1 {
		return fmt.Errorf("mailbox: invalid session size %d", size)
	}
	meta := m.key(sessionID, "meta")
	created, err := m.client.HSetNX(ctx, meta, fieldSize, []byte(strconv.Itoa(size)))
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	if !created {
		existing, err := m.size(ctx, sessionID)
		if err != nil {
			return err
		}
		if existing != size {
			return ErrSessionExists
		}
	} else {
		m.logger.Debug("session opened", zap.String("session_id", sessionID), zap.Int("size", size))
	}
	return m.touch(ctx, sessionID)
}

func (m *RedisMailbox) size(ctx context.Context, sessionID string) (int, error) {
	raw, err := m.client.HGet(ctx, m.key(sessionID, "meta"), fieldSize)
	if errors.Is(err, errKeyNotFound) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read session size: %w", err)
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("corrupt session size %q: %w", raw, err)
	}
	return n, nil
}

func (m *RedisMailbox) abandonReason(ctx context.Context, sessionID string) (string, error) {
	raw, err := m.client.HGet(ctx, m.key(sessionID, "meta"), fieldAbandoned)
	if errors.Is(err, errKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session state: %w", err)
	}
	return string(raw), nil
}

func (m *RedisMailbox) Post(ctx context.Context, sessionID string, kind Kind, slot int, payload []byte) error {
	if !validKind(kind) {
		return fmt.Errorf("mailbox: unknown kind %q", kind)
	}
	size, err := m.size(ctx, sessionID)
	if err != nil {
		return err
	}
	if reason, err := m.abandonReason(ctx, sessionID); err != nil {
		return err
	} else if reason != "" {
		return &AbandonedError{Reason: reason}
	}
	if slot < 0 || slot >= size {
		return ErrSlotOutOfRange
	}

	key := m.key(sessionID, string(kind))
	field := strconv.Itoa(slot)
	set, err := m.client.HSetNX(ctx, key, field, payload)
	if err != nil {
		return fmt.Errorf("failed to post %s: %w", kind, err)
	}
	if !set {
		prev, err := m.client.HGet(ctx, key, field)
		if err != nil {
			return fmt.Errorf("failed to read slot %d: %w", slot, err)
		}
		if !bytes.Equal(prev, payload) {
			return ErrSlotConflict
		}
		return nil
	}
	return m.touch(ctx, sessionID)
}

func (m *RedisMailbox) Await(ctx context.Context, sessionID string, kind Kind) ([][]byte, error) {
	if !validKind(kind) {
		return nil, fmt.Errorf("mailbox: unknown kind %q", kind)
	}
	size, err := m.size(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		reason, err := m.abandonReason(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			return nil, &AbandonedError{Reason: reason}
		}

		all, err := m.client.HGetAll(ctx, m.key(sessionID, string(kind)))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", kind, err)
		}
		if len(all) >= size {
			out := make([][]byte, size)
			for i := range out {
				p, ok := all[strconv.Itoa(i)]
				if !ok {
					return nil, fmt.Errorf("mailbox: slot %d missing from a full session", i)
				}
				out[i] = []byte(p)
			}
			return out, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *RedisMailbox) Abandon(ctx context.Context, sessionID string, reason string) error {
	if _, err := m.size(ctx, sessionID); err != nil {
		return err
	}
	if reason == "" {
		reason = "abandoned"
	}
	if _, err := m.client.HSetNX(ctx, m.key(sessionID, "meta"), fieldAbandoned, []byte(reason)); err != nil {
		return fmt.Errorf("failed to abandon session: %w", err)
	}
	m.logger.Info("session abandoned", zap.String("session_id", sessionID), zap.String("reason", reason))
	return nil
}

// Remove deletes every key of a finished session
func (m *RedisMailbox) Remove(ctx context.Context, sessionID string) error {
	return m.client.Del(ctx,
		m.key(sessionID, "meta"),
		m.key(sessionID, string(KindNonces)),
		m.key(sessionID, string(KindPartial)))
}

func (m *RedisMailbox) Close() error {
	return m.client.Close()
}
