package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/input-output-hk/acropolis/internal/logging"
)

// BadgerKV implements KV[K,V] over a single Badger database, grounded on
// the teacher's internal/storage/storage.go (one *badger.DB, logger
// wrapped via WithLogger, WARNING-level default). Where the teacher
// hard-coded string keys per call site, BadgerKV takes generic codecs so
// every ledger-state module gets the same atomic-batch/prefix-range
// behaviour instead of reimplementing key-string plumbing per module.
type BadgerKV[K comparable, V any] struct {
	db        *badger.DB
	keyCodec  KeyCodec[K]
	valCodec  ValueCodec[V]
	keyPrefix []byte
}

// Open opens (or creates) a Badger database rooted at dir, namespacing all
// keys under keyPrefix so multiple modules can share one directory safely.
func Open[K comparable, V any](
	dir string,
	keyPrefix []byte,
	keyCodec KeyCodec[K],
	valCodec ValueCodec[V],
) (*BadgerKV[K, V], error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(newBadgerLogger()).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerKV[K, V]{
		db:        db,
		keyCodec:  keyCodec,
		valCodec:  valCodec,
		keyPrefix: keyPrefix,
	}, nil
}

func (b *BadgerKV[K, V]) fullKey(key K) []byte {
	return append(append([]byte{}, b.keyPrefix...), b.keyCodec.Encode(key)...)
}

func (b *BadgerKV[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	var result V
	found := true
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.fullKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			v, decErr := b.valCodec.Decode(raw)
			if decErr != nil {
				return decErr
			}
			result = v
			return nil
		})
	})
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}
	return result, true, nil
}

func (b *BadgerKV[K, V]) Put(ctx context.Context, key K, value V) error {
	raw, err := b.valCodec.Encode(value)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.fullKey(key), raw)
	})
}

func (b *BadgerKV[K, V]) Delete(ctx context.Context, key K) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.fullKey(key))
	})
}

func (b *BadgerKV[K, V]) Range(ctx context.Context, prefix []byte) ([]Entry[K, V], error) {
	fullPrefix := append(append([]byte{}, b.keyPrefix...), prefix...)
	var out []Entry[K, V]
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
			item := it.Item()
			rawKey := bytes.TrimPrefix(item.KeyCopy(nil), b.keyPrefix)
			key, err := b.keyCodec.Decode(rawKey)
			if err != nil {
				return err
			}
			err = item.Value(func(raw []byte) error {
				v, decErr := b.valCodec.Decode(raw)
				if decErr != nil {
					return decErr
				}
				out = append(out, Entry[K, V]{Key: key, Value: v})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerKV[K, V]) Batch(ctx context.Context, writes []BatchWrite[K, V]) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, w := range writes {
			switch w.Op {
			case BatchPut:
				raw, err := b.valCodec.Encode(w.Value)
				if err != nil {
					return err
				}
				if err := txn.Set(b.fullKey(w.Key), raw); err != nil {
					return err
				}
			case BatchDelete:
				if err := txn.Delete(b.fullKey(w.Key)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (b *BadgerKV[K, V]) Close() error {
	return b.db.Close()
}

// badgerLogger adapts our slog-based logger to Badger's printf-style
// Logger interface, mirroring the teacher's BadgerLogger wrapper.
type badgerLogger struct{}

func newBadgerLogger() *badgerLogger { return &badgerLogger{} }

func (l *badgerLogger) Errorf(format string, args ...any) {
	logging.GetLogger().Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	logging.GetLogger().Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	logging.GetLogger().Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	logging.GetLogger().Debug(fmt.Sprintf(format, args...))
}
