// Package store persists signer key pairs and secret nonces in badger.
//
// Secret nonces live under nonce/<fingerprint>. Consuming one deletes it and
// writes a tombstone under used/<fingerprint> in the same transaction, so a
// commitment can sign at most once even across process restarts.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	schnorrkel "github.com/aa-schnorr/schnorrkel"
	"github.com/aa-schnorr/schnorrkel/internal/secretnonce"
)

const (
	keyPairPrefix = "keypair/"
	noncePrefix   = "nonce/"
	usedPrefix    = "used/"

	// conflicting Consume transactions are retried; the loser then sees the
	// tombstone and reports reuse.
	maxTxnRetries = 8
)

var tombstone = []byte{1}

// ErrKeyPairNotFound is returned by LoadKeyPair for an unknown name
var ErrKeyPairNotFound = errors.New("key pair not found")

// Options configures a Store
type Options struct {
	// Dir is the badger data directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *zap.Logger
}

// Store is a badger-backed key pair store and schnorrkel.NonceStore.
type Store struct {
	db     *badger.DB
	curve  schnorrkel.Curve
	logger *zap.Logger
}

var _ schnorrkel.NonceStore = (*Store)(nil)

// Open opens or creates the database described by opts.
func Open(curve schnorrkel.Curve, opts Options) (*Store, error) {
	if curve == nil {
		return nil, errors.New("store: curve is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("store: data directory is required")
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts = bopts.WithLogger(newBadgerLogger(logger)).WithCompactL0OnClose(true)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", opts.Dir, err)
	}
	logger.Info("opened store", zap.String("dir", opts.Dir), zap.Bool("in_memory", opts.InMemory))
	return &Store{db: db, curve: curve, logger: logger}, nil
}

// Close flushes and closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveKeyPair stores kp under name, replacing any previous entry.
func (s *Store) SaveKeyPair(name string, kp *schnorrkel.KeyPair) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("store: invalid key pair name %q", name)
	}
	data, err := kp.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize key pair: %w", err)
	}
	defer schnorrkel.ZeroizeBytes(data)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPairPrefix+name), data)
	})
}

// LoadKeyPair reads the key pair stored under name.
func (s *Store) LoadKeyPair(name string) (*schnorrkel.KeyPair, error) {
	var kp *schnorrkel.KeyPair
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPairPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrKeyPairNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			kp, err = schnorrkel.KeyPairFromSerialized(s.curve, val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return kp, nil
}

// KeyPairNames lists stored key pair names in key order.
func (s *Store) KeyPairNames() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(keyPairPrefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), keyPairPrefix))
		}
		return nil
	})
	return names, err
}

// Put stores a secret nonce pair. A fingerprint that is live or already
// consumed is refused with ErrNonceReuse.
func (s *Store) Put(fingerprint string, secret *secretnonce.Pair) error {
	data := secret.Bytes()
	defer schnorrkel.ZeroizeBytes(data)

	return s.update(func(txn *badger.Txn) error {
		for _, k := range []string{usedPrefix + fingerprint, noncePrefix + fingerprint} {
			if _, err := txn.Get([]byte(k)); err == nil {
				return schnorrkel.ErrNonceReuse.WithContext("fingerprint", fingerprint)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return txn.Set([]byte(noncePrefix+fingerprint), data)
	})
}

// Consume returns the secret for fingerprint and tombstones it.
func (s *Store) Consume(fingerprint string) (*secretnonce.Pair, error) {
	var secret *secretnonce.Pair
	err := s.update(func(txn *badger.Txn) error {
		secret = nil
		if _, err := txn.Get([]byte(usedPrefix + fingerprint)); err == nil {
			return schnorrkel.ErrNonceReuse.WithContext("fingerprint", fingerprint)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		key := []byte(noncePrefix + fingerprint)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return schnorrkel.ErrNonceNotFound.WithContext("fingerprint", fingerprint)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			secret, err = secretnonce.FromBytes(val)
			return err
		}); err != nil {
			return fmt.Errorf("failed to decode secret nonces: %w", err)
		}

		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Set([]byte(usedPrefix+fingerprint), tombstone)
	})
	if err != nil {
		if secret != nil {
			secret.Zeroize()
		}
		return nil, err
	}
	return secret, nil
}

// Discard tombstones fingerprint whether or not it is live.
func (s *Store) Discard(fingerprint string) error {
	return s.update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(noncePrefix + fingerprint)); err != nil {
			return err
		}
		return txn.Set([]byte(usedPrefix+fingerprint), tombstone)
	})
}

// update runs fn in a read-write transaction, retrying on conflict.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("retrying conflicting transaction", zap.Int("attempt", attempt+1))
	}
	return err
}
