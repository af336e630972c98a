package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/semfolio/engine"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "SEMFOLIO_CHECKPOINTS"

// NATS stores checkpoints in a JetStream KV bucket. Each thread has a head
// key holding its latest checkpoint and one key per sequence number. The head
// key's revision is the concurrency version.
type NATS struct {
	kv     jetstream.KeyValue
	logger *slog.Logger
}

// NATSOption configures a NATS store.
type NATSOption func(*natsConfig)

type natsConfig struct {
	bucket string
	logger *slog.Logger
}

// WithBucket overrides the bucket name.
func WithBucket(name string) NATSOption {
	return func(c *natsConfig) {
		if name != "" {
			c.bucket = name
		}
	}
}

// WithNATSLogger sets the logger.
func WithNATSLogger(l *slog.Logger) NATSOption {
	return func(c *natsConfig) {
		c.logger = l
	}
}

// NewNATS opens or creates the checkpoint bucket.
func NewNATS(ctx context.Context, nc *natsclient.Client, opts ...NATSOption) (*NATS, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS client required")
	}
	cfg := natsConfig{bucket: DefaultBucket, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}
	kv, err := getOrCreateBucket(ctx, js, cfg.bucket)
	if err != nil {
		return nil, fmt.Errorf("create checkpoint bucket: %w", err)
	}
	return &NATS{kv: kv, logger: cfg.logger}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Semfolio workflow checkpoints",
		History:     1,
	})
}

func headKey(threadID string) string {
	return threadKey(threadID) + ".head"
}

func entryKey(threadID string, seq int) string {
	return fmt.Sprintf("%s.%010d", threadKey(threadID), seq)
}

// Latest implements engine.Store.
func (s *NATS) Latest(ctx context.Context, threadID string) (*engine.Checkpoint, error) {
	entry, err := s.kv.Get(ctx, headKey(threadID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, engine.ErrNoCheckpoint
		}
		return nil, fmt.Errorf("get checkpoint head: %w", err)
	}
	cp, err := decodeCheckpoint(entry.Value())
	if err != nil {
		return nil, err
	}
	cp.Version = entry.Revision()
	return cp, nil
}

// Append implements engine.Store. The head write is the commit point; the
// per-sequence entry is written afterwards for History.
func (s *NATS) Append(ctx context.Context, cp *engine.Checkpoint, expectedVersion uint64) (uint64, error) {
	data, err := jsonCheckpoint(cp)
	if err != nil {
		return 0, err
	}

	var rev uint64
	if expectedVersion == 0 {
		rev, err = s.kv.Create(ctx, headKey(cp.ThreadID), data)
	} else {
		rev, err = s.kv.Update(ctx, headKey(cp.ThreadID), data, expectedVersion)
	}
	if err != nil {
		if isRevisionConflict(err) {
			return 0, fmt.Errorf("%w: thread %s: %v", engine.ErrConflict, cp.ThreadID, err)
		}
		return 0, fmt.Errorf("store checkpoint head: %w", err)
	}

	if _, err := s.kv.Put(ctx, entryKey(cp.ThreadID, cp.Seq), data); err != nil {
		s.logger.Warn("Checkpoint history entry not written",
			"thread_id", cp.ThreadID, "seq", cp.Seq, "error", err)
	}
	return rev, nil
}

// History implements engine.Store. Entries missing from the bucket are
// skipped; the head is always included.
func (s *NATS) History(ctx context.Context, threadID string) ([]*engine.Checkpoint, error) {
	head, err := s.Latest(ctx, threadID)
	if errors.Is(err, engine.ErrNoCheckpoint) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]*engine.Checkpoint, 0, head.Seq)
	for seq := 1; seq < head.Seq; seq++ {
		entry, err := s.kv.Get(ctx, entryKey(threadID, seq))
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get checkpoint %d: %w", seq, err)
		}
		cp, err := decodeCheckpoint(entry.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return append(out, head), nil
}

func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
