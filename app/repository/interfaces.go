package repository

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PlanFox/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	GetSettings(userID uint) (*models.UserSettings, error)
	SaveSettings(settings *models.UserSettings) error
	Update(user *models.User) error
}

// CalendarAccountRepository defines the operations on connected calendars and
// the events PlanFox pushed into them
type CalendarAccountRepository interface {
	ListByUser(userID uint) ([]models.CalendarAccount, error)
	ListEnabledByUser(userID uint) ([]models.CalendarAccount, error)
	ListExpiring(before time.Time) ([]models.CalendarAccount, error)
	GetAccount(id uint) (*models.CalendarAccount, error)
	GetByIDForUser(id, userID uint) (*models.CalendarAccount, error)
	Upsert(account *models.CalendarAccount) error
	UpdateSettings(id uint, name *string, color *string, enabled *bool) error
	UpdateAccountCredential(id uint, accessToken string, expiresAt *time.Time) error
	Delete(id uint) error
	FindSynced(accountID, taskID uint, date string) (*models.SyncedEvent, error)
	SaveSynced(event *models.SyncedEvent) error
}

// DailyPlanRepository is the daily plan store
type DailyPlanRepository interface {
	GetPlan(userID uint, date string) (*models.DailyPlan, error)
	ReplacePlan(userID uint, date string, entries []models.PlanEntry) (*models.DailyPlan, error)
}

// TaskRepository defines the interface for task operations
type TaskRepository interface {
	Create(task *models.Task) error
	ListByUser(userID uint, includeCompleted bool) ([]models.Task, error)
	GetByIDsForUser(userID uint, ids []uint) ([]models.Task, error)
}

// TimeSlotRepository defines the interface for recurring time slots
type TimeSlotRepository interface {
	Create(slot *models.TimeSlot) error
	ListByUser(userID uint) ([]models.TimeSlot, error)
	DeleteForUser(id, userID uint) error
}

// QueueRepository inspects the Redis keys of the job queue
type QueueRepository interface {
	GetListLength(key string) (int64, error)
	GetSortedSetLength(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User            UserRepository
	CalendarAccount CalendarAccountRepository
	DailyPlan       DailyPlanRepository
	Task            TaskRepository
	TimeSlot        TimeSlotRepository
	Queue           QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB, redisClient *redis.Client) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		CalendarAccount: NewCalendarAccountRepository(db),
		DailyPlan:       NewDailyPlanRepository(db),
		Task:            NewTaskRepository(db),
		TimeSlot:        NewTimeSlotRepository(db),
		Queue:           NewQueueRepository(redisClient),
	}
}
