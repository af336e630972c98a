package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/c360studio/semfolio/engine"
)

// threadKey encodes a thread id into characters every backend accepts in a
// key. The encoding is reversible so distinct threads never collide.
func threadKey(threadID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(threadID))
}

func jsonCheckpoint(cp *engine.Checkpoint) ([]byte, error) {
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}
	return data, nil
}

func decodeCheckpoint(data []byte) (*engine.Checkpoint, error) {
	var cp engine.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}
