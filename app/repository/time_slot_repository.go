package repository

import (
	"github.com/ManuelReschke/PlanFox/app/models"
	"gorm.io/gorm"
)

// timeSlotRepository implements the TimeSlotRepository interface
type timeSlotRepository struct {
	db *gorm.DB
}

// NewTimeSlotRepository creates a new time slot repository instance
func NewTimeSlotRepository(db *gorm.DB) TimeSlotRepository {
	return &timeSlotRepository{db: db}
}

// Create creates a new time slot
func (r *timeSlotRepository) Create(slot *models.TimeSlot) error {
	return r.db.Create(slot).Error
}

// ListByUser returns the user's time slots ordered by start time
func (r *timeSlotRepository) ListByUser(userID uint) ([]models.TimeSlot, error) {
	var slots []models.TimeSlot
	err := r.db.Where("user_id = ?", userID).Order("start_time ASC, id ASC").Find(&slots).Error
	return slots, err
}

// DeleteForUser deletes a slot owned by the user
func (r *timeSlotRepository) DeleteForUser(id, userID uint) error {
	res := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.TimeSlot{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
