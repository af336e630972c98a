package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/c360studio/semfolio/engine"
	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures an embedded Badger checkpoint store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	InMemory   bool
	SyncWrites bool

	// Logger receives Badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

// Badger stores checkpoints under ckpt/<thread>/<seq>. Versions equal
// sequence numbers; concurrent appends are resolved by Badger's
// transaction conflict detection.
type Badger struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NewBadger opens the database described by cfg.
func NewBadger(cfg BadgerConfig) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Badger{db: db}, nil
}

// Close releases the database.
func (s *Badger) Close() error {
	return s.db.Close()
}

func badgerPrefix(threadID string) []byte {
	return []byte("ckpt/" + threadKey(threadID) + "/")
}

func badgerKey(threadID string, seq int) []byte {
	return fmt.Appendf(badgerPrefix(threadID), "%010d", seq)
}

// latestIn returns the newest checkpoint in txn or ErrNoCheckpoint.
func latestIn(txn *badger.Txn, threadID string) (*engine.Checkpoint, error) {
	prefix := badgerPrefix(threadID)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append(append([]byte(nil), prefix...), 0xFF))
	if !it.ValidForPrefix(prefix) {
		return nil, engine.ErrNoCheckpoint
	}
	var cp *engine.Checkpoint
	err := it.Item().Value(func(val []byte) error {
		var derr error
		cp, derr = decodeCheckpoint(val)
		return derr
	})
	if err != nil {
		return nil, err
	}
	cp.Version = uint64(cp.Seq)
	return cp, nil
}

// Latest implements engine.Store.
func (s *Badger) Latest(_ context.Context, threadID string) (*engine.Checkpoint, error) {
	var cp *engine.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		cp, err = latestIn(txn, threadID)
		return err
	})
	return cp, err
}

// Append implements engine.Store.
func (s *Badger) Append(_ context.Context, cp *engine.Checkpoint, expectedVersion uint64) (uint64, error) {
	if uint64(cp.Seq) != expectedVersion+1 {
		return 0, fmt.Errorf("%w: seq %d does not follow version %d", engine.ErrConflict, cp.Seq, expectedVersion)
	}
	data, err := jsonCheckpoint(cp)
	if err != nil {
		return 0, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		var current uint64
		latest, err := latestIn(txn, cp.ThreadID)
		switch {
		case err == nil:
			current = latest.Version
		case !errors.Is(err, engine.ErrNoCheckpoint):
			return err
		}
		if current != expectedVersion {
			return fmt.Errorf("%w: thread %s at version %d, expected %d",
				engine.ErrConflict, cp.ThreadID, current, expectedVersion)
		}
		// Reading the target key registers it in the read set so a racing
		// writer of the same sequence fails at commit.
		key := badgerKey(cp.ThreadID, cp.Seq)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: thread %s seq %d exists", engine.ErrConflict, cp.ThreadID, cp.Seq)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return 0, fmt.Errorf("%w: thread %s: %v", engine.ErrConflict, cp.ThreadID, err)
	}
	if err != nil {
		return 0, err
	}
	return uint64(cp.Seq), nil
}

// History implements engine.Store.
func (s *Badger) History(_ context.Context, threadID string) ([]*engine.Checkpoint, error) {
	var out []*engine.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := badgerPrefix(threadID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				cp, err := decodeCheckpoint(val)
				if err != nil {
					return err
				}
				cp.Version = uint64(cp.Seq)
				out = append(out, cp)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}
