package repository

import (
	"github.com/ManuelReschke/PlanFox/app/models"
	"gorm.io/gorm"
)

// taskRepository implements the TaskRepository interface
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository instance
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create creates a new task
func (r *taskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// ListByUser returns the user's tasks, newest first
func (r *taskRepository) ListByUser(userID uint, includeCompleted bool) ([]models.Task, error) {
	var tasks []models.Task
	query := r.db.Where("user_id = ?", userID)
	if !includeCompleted {
		query = query.Where("completed = ?", false)
	}
	err := query.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// GetByIDsForUser returns the tasks among ids that belong to the user. Missing
// or foreign ids are silently absent from the result.
func (r *taskRepository) GetByIDsForUser(userID uint, ids []uint) ([]models.Task, error) {
	if len(ids) == 0 {
		return []models.Task{}, nil
	}
	var tasks []models.Task
	err := r.db.Where("user_id = ? AND id IN ?", userID, ids).Find(&tasks).Error
	return tasks, err
}
