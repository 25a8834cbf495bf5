// Package jobs holds the background work triggered by catalogue writes.
package jobs

import (
	"context"
	"time"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/queue"
)

// AuditRecorder persists audit rows. *repositories.AuditRepository
// satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, entry models.ProductAudit) error
}

// RecordAudit appends one row to a product's history.
type RecordAudit struct {
	ProductID uint           `json:"product_id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Version   models.Version `json:"version,omitempty"`
	At        time.Time      `json:"at"`

	recorder AuditRecorder
}

// NewRecordAudit returns the queue factory for RecordAudit jobs bound to rec.
func NewRecordAudit(rec AuditRecorder) func() queue.Job {
	return func() queue.Job { return &RecordAudit{recorder: rec} }
}

func (j *RecordAudit) Handle(ctx context.Context) error {
	return j.recorder.Record(ctx, models.ProductAudit{
		ProductID: j.ProductID,
		Action:    j.Action,
		Actor:     j.Actor,
		Version:   j.Version,
		At:        j.At,
	})
}
