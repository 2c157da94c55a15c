package handlers

import (
	"context"
	"testing"

	"github.com/HydroGest/lmarena/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestProgressReporter_ShowReplacesPrevious(t *testing.T) {
	s := newFakeSession("")
	r := NewProgressReporter(s, nil)
	ctx := context.Background()

	require.NoError(t, r.Show(ctx, "first"))
	assert.Equal(t, "sent1", r.MessageID())
	require.NoError(t, r.Show(ctx, "second"))
	assert.Equal(t, "sent2", r.MessageID())
	assert.Equal(t, []string{"sent1"}, s.deletedMessages())

	r.Cleanup(ctx)
	r.Cleanup(ctx)
	assert.Equal(t, []string{"sent1", "sent2"}, s.deletedMessages())
	assert.Empty(t, r.MessageID())
}

func TestProgressReporter_CleanupAfterCancel(t *testing.T) {
	s := newFakeSession("")
	r := NewProgressReporter(s, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, r.Show(ctx, "hint"))
	cancel()
	r.Cleanup(ctx)

	assert.Equal(t, []string{"sent1"}, s.deletedMessages())
}

func TestProgressReporter_DeleteFailureIsLogged(t *testing.T) {
	zcore, logs := observer.New(zapcore.WarnLevel)
	s := newFakeSession("")
	s.deleteErr = errBoom
	r := NewProgressReporter(s, logging.NewFromZap(zap.New(zcore)))

	require.NoError(t, r.Show(context.Background(), "hint"))
	r.Cleanup(context.Background())

	entries := logs.FilterMessage("failed to recall hint message").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sent1", entries[0].ContextMap()["message_id"])
	assert.Empty(t, r.MessageID())
}

func TestProgressReporter_SendFailure(t *testing.T) {
	s := newFakeSession("")
	s.sendErr = errBoom
	r := NewProgressReporter(s, nil)

	assert.ErrorIs(t, r.Show(context.Background(), "hint"), errBoom)
	assert.Empty(t, r.MessageID())
}
