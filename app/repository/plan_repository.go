package repository

import (
	"errors"

	"github.com/ManuelReschke/PlanFox/app/models"
	"gorm.io/gorm"
)

// dailyPlanRepository implements the DailyPlanRepository interface
type dailyPlanRepository struct {
	db *gorm.DB
}

// NewDailyPlanRepository creates a new daily plan repository instance
func NewDailyPlanRepository(db *gorm.DB) DailyPlanRepository {
	return &dailyPlanRepository{db: db}
}

// GetPlan returns the plan of a date with its entries and tasks in sort order,
// or nil when the user has no plan for that date
func (r *dailyPlanRepository) GetPlan(userID uint, date string) (*models.DailyPlan, error) {
	var plan models.DailyPlan
	err := r.db.
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Entries.Task").
		Where("user_id = ? AND date = ?", userID, date).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ReplacePlan swaps the whole entry list of a date in one transaction. Readers
// see either the old or the new list, never a mix.
func (r *dailyPlanRepository) ReplacePlan(userID uint, date string, entries []models.PlanEntry) (*models.DailyPlan, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		plan := models.DailyPlan{UserID: userID, Date: date}
		if err := tx.Where("user_id = ? AND date = ?", userID, date).FirstOrCreate(&plan).Error; err != nil {
			return err
		}
		if err := tx.Where("plan_id = ?", plan.ID).Delete(&models.PlanEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		rows := make([]models.PlanEntry, len(entries))
		for i, e := range entries {
			rows[i] = models.PlanEntry{
				PlanID:        plan.ID,
				TaskID:        e.TaskID,
				TimeSlotStart: e.TimeSlotStart,
				TimeSlotEnd:   e.TimeSlotEnd,
				SortOrder:     e.SortOrder,
			}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetPlan(userID, date)
}
