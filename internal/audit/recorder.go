package audit

import (
	"context"
	"log/slog"
	"sync"
)

// recorderBuffer is the queue size for pending entries. Entries beyond this
// are dropped so a slow store never blocks a request.
const recorderBuffer = 256

// Recorder writes audit entries asynchronously through a single goroutine,
// which suits SQLite's single-writer model.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
	source string
	ch     chan *AuditLog
	wg     sync.WaitGroup
}

// NewRecorder creates a Recorder. Call Start to begin draining.
func NewRecorder(repo Repository, source string, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
		source: source,
		ch:     make(chan *AuditLog, recorderBuffer),
	}
}

// Record enqueues an entry. It never blocks; a full queue drops the entry
// with a warning.
func (r *Recorder) Record(action, entityType, entityID, userID string, details map[string]any) {
	if r == nil {
		return
	}

	entry := &AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     r.source,
		Details:    details,
	}

	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", action,
			"entity_type", entityType,
		)
	}
}

// Start launches the drain goroutine. It runs until ctx is cancelled, then
// flushes what is left.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.drain(ctx)
	}()
}

func (r *Recorder) drain(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until the drain goroutine has flushed and exited.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) write(entry *AuditLog) {
	// The request context is gone by now; writes use their own.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
