//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/c360studio/semfolio/engine"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSStore(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	n := 0

	runStoreSuite(t, func(t *testing.T) engine.Store {
		n++
		s, err := NewNATS(context.Background(), tc.Client, WithBucket("CKPT_"+string(rune('A'+n))))
		require.NoError(t, err)
		return s
	})
}

func TestNATSStoreReopensBucket(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx := context.Background()

	s, err := NewNATS(ctx, tc.Client)
	require.NoError(t, err)
	_, err = s.Append(ctx, checkpoint("t", 1, engine.StatusPaused, "ask_followup"), 0)
	require.NoError(t, err)

	again, err := NewNATS(ctx, tc.Client)
	require.NoError(t, err)
	latest, err := again.Latest(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "ask_followup", latest.Node)
}

func TestNewNATSRequiresClient(t *testing.T) {
	_, err := NewNATS(context.Background(), nil)
	assert.Error(t, err)
}
