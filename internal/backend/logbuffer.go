package backend

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// LogSink is the part of the client the buffer needs.
type LogSink interface {
	PushLogs(ctx context.Context, sessionID string, entries []schemas.LogEntry) error
}

// LogBuffer batches per-session log entries and flushes them when the batch
// fills or the interval elapses, whichever comes first. One buffer serves
// one session.
type LogBuffer struct {
	sink      LogSink
	sessionID string
	batchSize int
	interval  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending []schemas.LogEntry

	done chan struct{}
	wg   sync.WaitGroup
}

// NewLogBuffer starts the flush loop. Call Close to drain and stop it.
func NewLogBuffer(sink LogSink, sessionID string, batchSize int, interval time.Duration, logger *zap.Logger) *LogBuffer {
	if batchSize <= 0 {
		batchSize = 20
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	b := &LogBuffer{
		sink:      sink,
		sessionID: sessionID,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushLoop()
	return b
}

// Add queues one entry, flushing immediately if the batch is full.
func (b *LogBuffer) Add(entry schemas.LogEntry) {
	entry.SessionID = b.sessionID

	b.mu.Lock()
	b.pending = append(b.pending, entry)
	full := len(b.pending) >= b.batchSize
	b.mu.Unlock()

	if full {
		b.Flush(context.Background())
	}
}

// Flush ships everything currently queued. Failed batches are dropped after
// logging; session logs are diagnostics, not state.
func (b *LogBuffer) Flush(ctx context.Context) {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := b.sink.PushLogs(ctx, b.sessionID, batch); err != nil {
		b.logger.Warn("log batch dropped",
			zap.Int("entries", len(batch)),
			zap.Error(err),
		)
	}
}

// Close drains the buffer and stops the flush loop.
func (b *LogBuffer) Close() {
	close(b.done)
	b.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.Flush(ctx)
}

func (b *LogBuffer) flushLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.Flush(context.Background())
		}
	}
}
