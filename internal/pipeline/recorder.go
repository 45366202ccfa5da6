package pipeline

import (
	"context"
	"sync"

	"github.com/Lllllllleong/docsummaryflow/internal/models"
)

// StatusEvent is one recorded transition.
type StatusEvent struct {
	DocumentID string
	Status     models.DocumentStatus
	Details    string
}

// MemoryRecorder keeps status transitions in memory. It is used by the CLI
// and in tests.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (m *MemoryRecorder) RecordStatus(_ context.Context, documentID string, status models.DocumentStatus, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, StatusEvent{DocumentID: documentID, Status: status, Details: details})
	return nil
}

// Events returns a copy of the recorded transitions.
func (m *MemoryRecorder) Events() []StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StatusEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Statuses returns the recorded statuses in order.
func (m *MemoryRecorder) Statuses() []models.DocumentStatus {
	events := m.Events()
	out := make([]models.DocumentStatus, len(events))
	for i, e := range events {
		out[i] = e.Status
	}
	return out
}
