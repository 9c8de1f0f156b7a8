package pg

import (
	"time"
)

// Timestamps is embedded by entities whose rows carry creation and update times.
type Timestamps struct {
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}
