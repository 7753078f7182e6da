package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const pgBatchSize = 50

// PGHandler is an slog.Handler that batches ERROR+ logs to PostgreSQL.
type PGHandler struct {
	*pgSink
	attrs []slog.Attr
}

type pgSink struct {
	db       *gorm.DB
	mu       sync.Mutex
	buffer   []models.SystemLog
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPGHandler(db *gorm.DB, interval time.Duration) *PGHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	sink := &pgSink{
		db:     db,
		buffer: make([]models.SystemLog, 0, pgBatchSize),
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	sink.wg.Add(1)
	go sink.flushLoop()
	return &PGHandler{pgSink: sink}
}

func (s *pgSink) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.Flush()
		case <-s.done:
			s.Flush()
			return
		}
	}
}

// Flush writes everything buffered so far.
func (s *pgSink) Flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]models.SystemLog, 0, pgBatchSize)
	s.mu.Unlock()

	if err := s.db.CreateInBatches(batch, pgBatchSize).Error; err != nil {
		// Logged at WARN so the failure does not loop back into this sink.
		slog.Warn("failed to flush system logs to DB", "error", err.Error(), "count", len(batch))
	}
}

// Stop flushes the buffer and ends the background loop.
func (s *pgSink) Stop() {
	s.stopOnce.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
	s.wg.Wait()
}

// Enabled only handles ERROR and above.
func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		Timestamp: record.Time.UTC(),
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "trace_id":
			entry.TraceID = a.Value.String()
		case "user_id":
			s := a.Value.String()
			entry.UserID = &s
		case "payment_id":
			s := a.Value.String()
			entry.PaymentID = &s
		case "action":
			entry.Action = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		case "latency_ms":
			switch v := a.Value.Any().(type) {
			case float64:
				entry.LatencyMs = int(math.Round(v))
			case int64:
				entry.LatencyMs = int(v)
			}
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	h.mu.Lock()
	h.buffer = append(h.buffer, entry)
	needFlush := len(h.buffer) >= pgBatchSize
	h.mu.Unlock()

	if needFlush {
		go h.Flush()
	}
	return nil
}

func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PGHandler{pgSink: h.pgSink, attrs: merged}
}

func (h *PGHandler) WithGroup(name string) slog.Handler {
	return h
}
