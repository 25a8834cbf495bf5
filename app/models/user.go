package models

import "time"

// Roles allowed to modify the catalogue.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// User is an API account checked by the auth middleware.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Role      string    `gorm:"size:50;not null;default:viewer" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
