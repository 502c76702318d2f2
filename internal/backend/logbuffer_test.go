package backend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]schemas.LogEntry
}

func (s *captureSink) PushLogs(ctx context.Context, sessionID string, entries []schemas.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, entries)
	return nil
}

func (s *captureSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *captureSink) totalEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestLogBufferFlushesWhenBatchFills(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &captureSink{}
	buf := NewLogBuffer(sink, "sess-1", 3, time.Hour, zap.NewNop())
	defer buf.Close()

	for i := 0; i < 3; i++ {
		buf.Add(schemas.LogEntry{Level: schemas.LogInfo, Message: "step"})
	}

	require.Eventually(t, func() bool { return sink.batchCount() >= 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, sink.totalEntries())
}

func TestLogBufferFlushesOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &captureSink{}
	buf := NewLogBuffer(sink, "sess-1", 100, 20*time.Millisecond, zap.NewNop())
	defer buf.Close()

	buf.Add(schemas.LogEntry{Level: schemas.LogWarn, Message: "slow step"})

	require.Eventually(t, func() bool { return sink.totalEntries() == 1 }, time.Second, 10*time.Millisecond)
}

func TestLogBufferCloseDrainsPending(t *testing.T) {
	sink := &captureSink{}
	buf := NewLogBuffer(sink, "sess-1", 100, time.Hour, zap.NewNop())

	buf.Add(schemas.LogEntry{Message: "a"})
	buf.Add(schemas.LogEntry{Message: "b"})
	buf.Close()

	assert.Equal(t, 2, sink.totalEntries())
}

func TestLogBufferStampsSessionID(t *testing.T) {
	sink := &captureSink{}
	buf := NewLogBuffer(sink, "sess-42", 1, time.Hour, zap.NewNop())
	defer buf.Close()

	buf.Add(schemas.LogEntry{Message: "x"})

	require.Eventually(t, func() bool { return sink.totalEntries() == 1 }, time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "sess-42", sink.batches[0][0].SessionID)
}
