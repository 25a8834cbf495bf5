package models

import "time"

// Audit actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ProductAudit records one committed write against a product.
type ProductAudit struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Action    string    `gorm:"size:20;not null" json:"action"`
	Actor     string    `gorm:"size:255" json:"actor"`
	Version   Version   `gorm:"size:16" json:"version,omitempty"`
	At        time.Time `gorm:"not null;index" json:"at"`
}
