package mailbox

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRedisClient is an in-memory stand-in for the Redis hash commands.
type mockRedisClient struct {
	mu     sync.Mutex
	hashes map[string]map[string][]byte
	ttls   map[string]time.Duration
	closed bool
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{
		hashes: make(map[string]map[string][]byte),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *mockRedisClient) HSetNX(_ context.Context, key, field string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		m.hashes[key] = h
	}
	if _, ok := h[field]; ok {
		return false, nil
	}
	h[field] = append([]byte(nil), value...)
	return true, nil
}

func (m *mockRedisClient) HGet(_ context.Context, key, field string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hashes[key][field]
	if !ok {
		return nil, errKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *mockRedisClient) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = string(v)
	}
	return out, nil
}

func (m *mockRedisClient) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = ttl
	return nil
}

func (m *mockRedisClient) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.hashes, k)
		delete(m.ttls, k)
	}
	return nil
}

func (m *mockRedisClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func newMockRedisMailbox(t *testing.T) (*RedisMailbox, *mockRedisClient) {
	t.Helper()
	client := newMockRedisClient()
	mb := newRedisMailbox(client, RedisOptions{PollInterval: 5 * time.Millisecond, TTL: time.Minute}, nil)
	return mb, client
}

func TestRedisMailbox(t *testing.T) {
	mailboxContract(t, func(t *testing.T) Mailbox {
		mb, _ := newMockRedisMailbox(t)
		return mb
	})
}

func TestRedisMailboxKeysAndTTL(t *testing.T) {
	ctx := context.Background()
	mb, client := newMockRedisMailbox(t)

	require.NoError(t, mb.Open(ctx, "s1", 2))
	require.NoError(t, mb.Post(ctx, "s1", KindNonces, 1, []byte("n")))

	assert.Equal(t, []byte("2"), client.hashes["schnorrkel:session:s1:meta"]["size"])
	assert.Equal(t, []byte("n"), client.hashes["schnorrkel:session:s1:nonces"]["1"])
	for _, part := range []string{"meta", "nonces", "partial"} {
		assert.Equal(t, time.Minute, client.ttls["schnorrkel:session:s1:"+part], part)
	}

	require.NoError(t, mb.Remove(ctx, "s1"))
	for k := range client.hashes {
		assert.False(t, strings.HasPrefix(k, "schnorrkel:session:s1:"), k)
	}

	require.NoError(t, mb.Close())
	assert.True(t, client.closed)
}

func TestRedisMailboxDefaults(t *testing.T) {
	mb := newRedisMailbox(newMockRedisClient(), RedisOptions{}, nil)
	assert.Equal(t, defaultRedisPrefix, mb.prefix)
	assert.Equal(t, defaultRedisTTL, mb.ttl)
	assert.Equal(t, defaultPollInterval, mb.pollInterval)
}

func TestRedisMailboxLive(t *testing.T) {
	addr := os.Getenv("SCHNORRKEL_TEST_REDIS")
	if addr == "" {
		t.Skipf("SCHNORRKEL_TEST_REDIS not set, skipping live Redis test")
	}
	mb, err := NewRedisMailbox(RedisOptions{Addr: addr, Prefix: "schnorrkel-test", TTL: time.Minute}, nil)
	if err != nil {
		t.Skipf("Redis unavailable at %s: %v", addr, err)
	}
	defer mb.Close()

	ctx := context.Background()
	id := uuid.NewString()
	defer mb.Remove(ctx, id)

	require.NoError(t, mb.Open(ctx, id, 1))
	require.NoError(t, mb.Post(ctx, id, KindNonces, 0, []byte("live")))
	got, err := mb.Await(ctx, id, KindNonces)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("live")}, got)
}
