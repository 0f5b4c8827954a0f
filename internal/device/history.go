package device

import (
	"context"
	"sync"
	"time"
)

const (
	defaultHistoryQueue = 256
	historyWriteTimeout = 5 * time.Second
)

// HistoryEntry is one recorded entity change.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	DeviceUUID string    `json:"device_uuid"`
	Class      Class     `json:"class"`
	State      State     `json:"state"`
	Source     Cause     `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves entity change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// RecordStateChange stores one state snapshot.
	RecordStateChange(ctx context.Context, uuid string, class Class, state State, source Cause) error

	// GetHistory returns the most recent entries for uuid, newest first.
	// limit <= 0 uses the default of 50; values above 200 are clamped.
	GetHistory(ctx context.Context, uuid string, limit int) ([]HistoryEntry, error)

	// PruneHistory deletes entries older than olderThan and returns the
	// number of rows removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

type historyRecord struct {
	uuid   string
	class  Class
	state  State
	source Cause
}

// HistoryRecorder writes registry changes to a HistoryRepository.
//
// Listen is the ChangeListener to register on a Registry. It snapshots the
// entity state and queues it; a single worker does the database write, so
// bus delivery never waits on disk. When the queue is full the record is
// dropped with a warning.
type HistoryRecorder struct {
	repo      HistoryRepository
	logger    Logger
	retention time.Duration

	queue chan historyRecord
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewHistoryRecorder starts the recorder's worker. A positive retention
// prunes older rows once an hour. Call Close to stop it.
func NewHistoryRecorder(repo HistoryRepository, retention time.Duration, logger Logger) *HistoryRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	h := &HistoryRecorder{
		repo:      repo,
		logger:    logger,
		retention: retention,
		queue:     make(chan historyRecord, defaultHistoryQueue),
		done:      make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

// Listen queues e's current state. It never blocks.
func (h *HistoryRecorder) Listen(e Entity, cause Cause) {
	rec := historyRecord{
		uuid:   e.UUID(),
		class:  e.Class(),
		state:  e.State(),
		source: cause,
	}
	select {
	case <-h.done:
	case h.queue <- rec:
	default:
		h.logger.Warn("history queue full, dropping record", "uuid", rec.uuid)
	}
}

// Close stops accepting records, writes everything already queued and
// waits for the worker to exit.
func (h *HistoryRecorder) Close() {
	h.once.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}

func (h *HistoryRecorder) run() {
	defer h.wg.Done()

	var prune <-chan time.Time
	if h.retention > 0 {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		prune = ticker.C
		h.prune()
	}

	for {
		select {
		case rec := <-h.queue:
			h.write(rec)
		case <-prune:
			h.prune()
		case <-h.done:
			for {
				select {
				case rec := <-h.queue:
					h.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (h *HistoryRecorder) write(rec historyRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := h.repo.RecordStateChange(ctx, rec.uuid, rec.class, rec.state, rec.source); err != nil {
		h.logger.Error("recording state history",
			"uuid", rec.uuid,
			"error", err,
		)
	}
}

func (h *HistoryRecorder) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	n, err := h.repo.PruneHistory(ctx, h.retention)
	if err != nil {
		h.logger.Error("pruning state history", "error", err)
		return
	}
	if n > 0 {
		h.logger.Info("state history pruned", "rows", n)
	}
}
