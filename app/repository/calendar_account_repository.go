package repository

import (
	"errors"
	"time"

	"github.com/ManuelReschke/PlanFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// calendarAccountRepository implements the CalendarAccountRepository interface
type calendarAccountRepository struct {
	db *gorm.DB
}

// NewCalendarAccountRepository creates a new calendar account repository instance
func NewCalendarAccountRepository(db *gorm.DB) CalendarAccountRepository {
	return &calendarAccountRepository{db: db}
}

// ListByUser returns all accounts of a user, oldest first
func (r *calendarAccountRepository) ListByUser(userID uint) ([]models.CalendarAccount, error) {
	var accounts []models.CalendarAccount
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&accounts).Error
	return accounts, err
}

// ListEnabledByUser returns the enabled accounts in connection order. The order
// decides which copy of a duplicated event counts as the original.
func (r *calendarAccountRepository) ListEnabledByUser(userID uint) ([]models.CalendarAccount, error) {
	var accounts []models.CalendarAccount
	err := r.db.Where("user_id = ? AND enabled = ?", userID, true).Order("created_at ASC, id ASC").Find(&accounts).Error
	return accounts, err
}

// ListExpiring returns enabled OAuth accounts whose token expires before the given time
func (r *calendarAccountRepository) ListExpiring(before time.Time) ([]models.CalendarAccount, error) {
	var accounts []models.CalendarAccount
	err := r.db.
		Where("enabled = ? AND provider = ? AND refresh_token <> ''", true, models.CalendarProviderGoogle).
		Where("expires_at IS NULL OR expires_at < ?", before).
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}

// GetAccount retrieves an account by ID
func (r *calendarAccountRepository) GetAccount(id uint) (*models.CalendarAccount, error) {
	var account models.CalendarAccount
	if err := r.db.First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByIDForUser retrieves an account only if it belongs to the user
func (r *calendarAccountRepository) GetByIDForUser(id, userID uint) (*models.CalendarAccount, error) {
	var account models.CalendarAccount
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// Upsert creates the account or refreshes tokens of an existing one with the
// same (user, provider email, calendar). A reconnect without a new refresh
// token keeps the stored one.
func (r *calendarAccountRepository) Upsert(account *models.CalendarAccount) error {
	columns := []string{"access_token", "expires_at", "enabled", "updated_at"}
	if account.RefreshToken != "" {
		columns = append(columns, "refresh_token")
	}

	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "provider_email"},
			{Name: "calendar_id"},
		},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(account).Error; err != nil {
		return err
	}

	var stored models.CalendarAccount
	err := r.db.Where("user_id = ? AND provider_email = ? AND calendar_id = ?",
		account.UserID, account.ProviderEmail, account.CalendarID).First(&stored).Error
	if err != nil {
		return err
	}
	*account = stored
	return nil
}

// UpdateSettings changes the user-editable fields; nil means unchanged
func (r *calendarAccountRepository) UpdateSettings(id uint, name *string, color *string, enabled *bool) error {
	updates := map[string]interface{}{}
	if name != nil {
		updates["calendar_name"] = *name
	}
	if color != nil {
		updates["color"] = *color
	}
	if enabled != nil {
		updates["enabled"] = *enabled
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.CalendarAccount{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateAccountCredential stores a refreshed access token
func (r *calendarAccountRepository) UpdateAccountCredential(id uint, accessToken string, expiresAt *time.Time) error {
	return r.db.Model(&models.CalendarAccount{}).Where("id = ?", id).Updates(map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   expiresAt,
	}).Error
}

// Delete removes the account together with its synced event records
func (r *calendarAccountRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&models.SyncedEvent{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.CalendarAccount{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FindSynced returns the pushed event for a plan entry, or nil when none exists
func (r *calendarAccountRepository) FindSynced(accountID, taskID uint, date string) (*models.SyncedEvent, error) {
	var event models.SyncedEvent
	err := r.db.Where("account_id = ? AND task_id = ? AND plan_date = ?", accountID, taskID, date).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// SaveSynced records a pushed event
func (r *calendarAccountRepository) SaveSynced(event *models.SyncedEvent) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "task_id"},
			{Name: "plan_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"remote_event_id", "fingerprint", "updated_at"}),
	}).Create(event).Error
}
