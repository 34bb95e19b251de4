package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "mudra.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStartSession(t *testing.T) {
	st := newTestStore(t)
	cfg := config.Default()

	sess, err := startSession(st, cfg)
	require.NoError(t, err)

	got, err := st.Sessions().Get(sess.ID)
	require.NoError(t, err)
	var snapshot config.Config
	require.NoError(t, json.Unmarshal(got.Config, &snapshot))
	assert.Equal(t, cfg.Sink.Target, snapshot.Sink.Target)
	assert.Equal(t, cfg.Classifier.TouchThreshold, snapshot.Classifier.TouchThreshold)
}

func TestStartSession_SnapshotError(t *testing.T) {
	st := newTestStore(t)
	cfg := config.Default()
	cfg.Actions = []plugin.Binding{{Payload: "1000", Plugin: "tone", Action: "play", Params: json.RawMessage(`{`)}}

	_, err := startSession(st, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to snapshot configuration")

	sessions, err := st.Sessions().List(10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
