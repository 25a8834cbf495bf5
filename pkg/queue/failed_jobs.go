package queue

import (
	"context"
	"time"

	"github.com/shashiranjanraj/catalog/pkg/logger"
)

// FailedJob is a job that exhausted its retries. The table is created with
// the rest of the schema.
type FailedJob struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobType  string    `gorm:"size:255;not null;index" json:"job_type"`
	Payload  string    `gorm:"type:text;not null" json:"payload"`
	Error    string    `gorm:"type:text" json:"error"`
	Attempts int       `gorm:"not null;default:0" json:"attempts"`
	FailedAt time.Time `gorm:"not null" json:"failed_at"`
}

func (FailedJob) TableName() string { return "failed_jobs" }

// recordFailure keeps the failure in memory and, when a database is
// configured, persists it.
func (m *Manager) recordFailure(ctx context.Context, name string, payload []byte, lastErr error, attempts int) {
	rec := FailedJob{
		JobType:  name,
		Payload:  string(payload),
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
	}
	if lastErr != nil {
		rec.Error = lastErr.Error()
	}

	m.mu.Lock()
	m.failed = append(m.failed, rec)
	m.mu.Unlock()

	if m.db == nil {
		return
	}
	if err := m.db.WithContext(context.WithoutCancel(ctx)).Create(&rec).Error; err != nil {
		logger.Error("queue: persist failed job", "type", name, "error", err)
	}
}

// FailedJobs returns the failures seen by this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}
