package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/upsdash-core/internal/ups"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder is a ups.ActionObserver that writes each action to a Repository
// from a background goroutine. ActionPerformed never blocks the request
// path: when the queue is full the entry is dropped and counted.
type Recorder struct {
	repo    Repository
	queue   chan AuditLog
	logger  Logger
	dropped atomic.Int64
}

// NewRecorder creates a recorder with a queue of queueSize entries
// (256 when queueSize <= 0). Run must be started to drain it.
func NewRecorder(repo Repository, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		repo:   repo,
		queue:  make(chan AuditLog, queueSize),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Dropped returns how many entries were discarded on a full queue.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// ActionPerformed implements ups.ActionObserver.
func (r *Recorder) ActionPerformed(ev ups.ActionEvent) {
	select {
	case r.queue <- FromEvent(ev):
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, entry dropped", "ups", ev.UPS, "action", string(ev.Action))
	}
}

// Run writes queued entries until ctx is cancelled, then flushes whatever
// is still queued. It always returns nil.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case log := <-r.queue:
			r.write(ctx, log)
		case <-ctx.Done():
			r.flush(ctx)
			return nil
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	for {
		select {
		case log := <-r.queue:
			r.write(ctx, log)
		default:
			return
		}
	}
}

// write is detached from ctx cancellation so queued entries survive shutdown.
func (r *Recorder) write(ctx context.Context, log AuditLog) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &log); err != nil {
		r.logger.Error("writing audit log failed", "ups", log.UPS, "action", log.Action, "error", err)
	}
}

// FromEvent converts a dispatcher event into an audit entry.
func FromEvent(ev ups.ActionEvent) AuditLog {
	log := AuditLog{
		UPS:       ev.UPS,
		Action:    string(ev.Action),
		Target:    ev.Target,
		Value:     ev.Value,
		Outcome:   OutcomeAccepted,
		Subject:   ev.Subject,
		CreatedAt: ev.At.UTC(),
	}
	if ev.Problem != nil {
		log.Outcome = OutcomeRejected
		log.Status = ev.Problem.Status
		log.Title = ev.Problem.Title
		log.Detail = ev.Problem.Detail
	}
	return log
}
