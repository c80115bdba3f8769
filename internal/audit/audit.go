// Package audit records scraping attempts for traceability.
package audit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/leadforge/leadforge/internal/lead"
)

// ZapLog writes audit entries as structured log lines. It satisfies
// lead.AuditLog without any storage of its own; the log stream is the record.
type ZapLog struct {
	logger *zap.Logger
}

// NewZapLog constructs a ZapLog.
func NewZapLog(logger *zap.Logger) *ZapLog {
	return &ZapLog{logger: logger}
}

// RecordScrape logs the attempt at Info on success and Warn on failure.
func (a *ZapLog) RecordScrape(_ context.Context, entry lead.AuditEntry) {
	fields := []zap.Field{
		zap.String("url", entry.URL),
		zap.Bool("success", entry.Success),
		zap.Int64("processing_ms", entry.ProcessingMs),
		zap.Time("at", entry.At),
	}
	if entry.Success {
		a.logger.Info("scrape attempt", fields...)
		return
	}
	fields = append(fields, zap.String("error", entry.Error))
	a.logger.Warn("scrape attempt", fields...)
}

// Memory keeps entries in a slice for tests.
type Memory struct {
	mu      sync.Mutex
	entries []lead.AuditEntry
}

// NewMemory constructs an empty Memory log.
func NewMemory() *Memory {
	return &Memory{}
}

// RecordScrape appends the entry.
func (m *Memory) RecordScrape(_ context.Context, entry lead.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (m *Memory) Entries() []lead.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]lead.AuditEntry(nil), m.entries...)
}
