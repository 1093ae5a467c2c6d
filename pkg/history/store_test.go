package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/portalkeeper/pkg/status"
)

var _ status.Reporter = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordsReporterEvents(t *testing.T) {
	s := openTestStore(t)

	s.Listening()
	s.Transition(true)
	s.RecoveryStarted()
	s.RecoveryFailed(errors.New("recovery failed at identifier: timeout"))
	s.RecoveryStarted()
	s.RecoverySucceeded()
	s.Transition(false)

	events, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 7)

	kinds := make([]Kind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []Kind{
		KindConnected,
		KindRecoverySucceeded,
		KindRecoveryStarted,
		KindRecoveryFailed,
		KindRecoveryStarted,
		KindDisconnected,
		KindListening,
	}, kinds)

	assert.Equal(t, events[2].AttemptID, events[1].AttemptID, "outcome shares the attempt id")
	assert.Equal(t, events[4].AttemptID, events[3].AttemptID)
	assert.NotEqual(t, events[2].AttemptID, events[4].AttemptID, "each attempt gets its own id")
	assert.Equal(t, "recovery failed at identifier: timeout", events[3].Detail)
	assert.Empty(t, events[0].AttemptID)
}

func TestStore_RecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, KindDisconnected, "", ""))
	}

	events, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Greater(t, events[0].ID, events[1].ID)
}

func TestStore_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, KindConnected, "", "first run"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	events, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "first run", events[0].Detail)
}

func TestStore_WriteFailureIsSwallowed(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	assert.NotPanics(t, func() { s.Transition(true) })
}
