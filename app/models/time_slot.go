package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

const DefaultTimeSlotColor = "#4A90D9"

// Weekdays is stored as a JSON array of weekday numbers (0 = Sunday)
type Weekdays []int

// DefaultWeekdays is Monday to Friday
func DefaultWeekdays() Weekdays {
	return Weekdays{1, 2, 3, 4, 5}
}

func (w Weekdays) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(w))
	return string(b), err
}

func (w *Weekdays) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*w = nil
		return nil
	default:
		return errors.New("weekdays: unsupported column type")
	}
	var days []int
	if err := json.Unmarshal(raw, &days); err != nil {
		return err
	}
	*w = days
	return nil
}

// Contains reports whether the weekday is part of the set
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == int(day) {
			return true
		}
	}
	return false
}

// TimeSlot is a recurring block in the user's day, e.g. "Deep work 09:00-11:00".
// Blocking slots are treated as busy time by the focus finder and the scheduler.
type TimeSlot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index" json:"user_id"`
	Label      string    `gorm:"type:varchar(100)" json:"label" validate:"required,min=1,max=100"`
	StartTime  string    `gorm:"type:char(5)" json:"start_time" validate:"required,datetime=15:04"`
	EndTime    string    `gorm:"type:char(5)" json:"end_time" validate:"required,datetime=15:04"`
	DaysOfWeek Weekdays  `gorm:"type:varchar(64)" json:"days_of_week" validate:"dive,min=0,max=6"`
	Color      string    `gorm:"type:varchar(20)" json:"color" validate:"omitempty,hexcolor"`
	Blocking   bool      `gorm:"default:false" json:"blocking"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
