package db

import (
	"context"
	"sync"
	"time"

	"github.com/HydroGest/lmarena/logging"

	"go.uber.org/zap"
)

// DefaultRecorderCapacity is the recorder's queue length.
const DefaultRecorderCapacity = 100

// HistoryWriter is the part of Repository the Recorder needs.
type HistoryWriter interface {
	InsertGeneration(ctx context.Context, rec GenerationRecord) (int64, error)
}

// Recorder writes history records on a background goroutine so a slow or
// broken database never delays or fails a chat reply. Failed and dropped
// writes are logged and forgotten.
//
// Usage:
//
//	rec := db.NewRecorder(repo, logger, db.DefaultRecorderCapacity)
//	rec.Start()
//	rec.Record(db.GenerationRecord{...})
//	...
//	rec.Close(ctx) // drains the queue
type Recorder struct {
	writer       HistoryWriter
	log          *logging.Logger
	queue        chan GenerationRecord
	writeTimeout time.Duration

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewRecorder creates a stopped Recorder. A non-positive capacity uses
// DefaultRecorderCapacity.
func NewRecorder(writer HistoryWriter, log *logging.Logger, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Recorder{
		writer:       writer,
		log:          log,
		queue:        make(chan GenerationRecord, capacity),
		writeTimeout: 5 * time.Second,
	}
}

// Start launches the writer goroutine. Calling it twice is a no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	r.wg.Add(1)
	go r.run()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for rec := range r.queue {
		r.write(rec)
	}
}

func (r *Recorder) write(rec GenerationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if _, err := r.writer.InsertGeneration(ctx, rec); err != nil {
		r.log.Warn("history write failed",
			zap.String("correlation_id", rec.CorrelationID),
			zap.String("status", rec.Status),
			zap.Error(err),
		)
	}
}

// Record queues rec without blocking. It reports false when the record was
// dropped because the queue is full or the recorder is closed.
func (r *Recorder) Record(rec GenerationRecord) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	select {
	case r.queue <- rec:
		return true
	default:
		r.log.Warn("history queue full, dropping record",
			zap.String("correlation_id", rec.CorrelationID),
			zap.Int("capacity", cap(r.queue)),
		)
		return false
	}
}

// Pending returns the number of queued records.
func (r *Recorder) Pending() int {
	return len(r.queue)
}

// Close stops accepting records and waits for the queue to drain or ctx to
// end. Records still queued when ctx ends are lost.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	close(r.queue)
	r.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.log.Warn("history queue not drained before shutdown", zap.Int("pending", len(r.queue)))
		return ctx.Err()
	}
}
