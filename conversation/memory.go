package conversation

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps messages in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	messages map[string]Message
}

// NewMemoryRepository creates a repository seeded with msgs.
func NewMemoryRepository(msgs ...Message) *MemoryRepository {
	r := &MemoryRepository{messages: make(map[string]Message)}
	r.Add(msgs...)
	return r
}

// Add inserts or replaces messages by ID.
func (r *MemoryRepository) Add(msgs ...Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.messages[m.ID] = m
	}
}

// SetStatus updates the processing status of a message.
func (r *MemoryRepository) SetStatus(id string, status ProcessingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.ProcessingStatus = status
	r.messages[id] = m
	return nil
}

// ListMessages implements Repository.
func (r *MemoryRepository) ListMessages(ctx context.Context, opts ListOptions) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	var out []Message
	for _, m := range r.messages {
		if m.ConversationID == opts.ConversationID {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()

	return newestFirst(out, opts.Limit), nil
}

// FindByID implements Repository.
func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func newestFirst(msgs []Message, limit int) []Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID > msgs[j].ID
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs
}
