package models

import (
	"time"

	"gorm.io/gorm"
)

// Eisenhower quadrants, highest priority first
const (
	QuadrantDoFirst   = "DO_FIRST"
	QuadrantSchedule  = "SCHEDULE"
	QuadrantDelegate  = "DELEGATE"
	QuadrantEliminate = "ELIMINATE"

	HorizonShortTerm = "SHORT_TERM"
	HorizonLongTerm  = "LONG_TERM"
)

type Task struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"index" json:"user_id"`
	Title            string         `gorm:"type:varchar(255)" json:"title" validate:"required,min=1,max=255"`
	Description      string         `gorm:"type:text" json:"description,omitempty" validate:"max=5000"`
	EstimatedMinutes *int           `json:"estimated_minutes" validate:"omitempty,min=0,max=1440"`
	Quadrant         string         `gorm:"type:varchar(20);default:'SCHEDULE'" json:"quadrant" validate:"oneof=DO_FIRST SCHEDULE DELEGATE ELIMINATE"`
	Horizon          string         `gorm:"type:varchar(20);default:'SHORT_TERM'" json:"horizon" validate:"oneof=SHORT_TERM LONG_TERM"`
	Completed        bool           `gorm:"default:false" json:"completed"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// Minutes returns the estimated duration, or def when no estimate is set
func (t *Task) Minutes(def int) int {
	if t.EstimatedMinutes == nil || *t.EstimatedMinutes <= 0 {
		return def
	}
	return *t.EstimatedMinutes
}

// QuadrantRank orders quadrants from DO_FIRST (0) to ELIMINATE (3); unknown values sort last
func QuadrantRank(quadrant string) int {
	switch quadrant {
	case QuadrantDoFirst:
		return 0
	case QuadrantSchedule:
		return 1
	case QuadrantDelegate:
		return 2
	case QuadrantEliminate:
		return 3
	default:
		return 4
	}
}
