package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileRepository reads messages from a JSON array on disk. The file is
// re-read on every call so edits between CLI invocations are picked up.
type FileRepository struct {
	path string
}

// NewFileRepository creates a repository backed by path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) load() ([]Message, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read transcript file: %w", err)
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode transcript file %s: %w", r.path, err)
	}
	return msgs, nil
}

// ListMessages implements Repository.
func (r *FileRepository) ListMessages(ctx context.Context, opts ListOptions) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := r.load()
	if err != nil {
		return nil, err
	}

	var out []Message
	for _, m := range all {
		// Files written for a single conversation may omit the id.
		if m.ConversationID == "" || m.ConversationID == opts.ConversationID {
			m.ConversationID = opts.ConversationID
			out = append(out, m)
		}
	}
	return newestFirst(out, opts.Limit), nil
}

// FindByID implements Repository.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}
