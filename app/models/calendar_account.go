package models

import "time"

const (
	CalendarProviderGoogle = "google"
	CalendarProviderICS    = "ics"

	DefaultCalendarName  = "New Calendar"
	DefaultCalendarColor = "#4285F4"
)

// CalendarAccount is one external calendar a user has connected. For ICS
// subscriptions CalendarID holds the feed URL and no credentials are stored.
type CalendarAccount struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"index;uniqueIndex:account_identity" json:"user_id"`
	Provider      string     `gorm:"type:varchar(20);default:'google'" json:"provider"`
	ProviderEmail string     `gorm:"uniqueIndex:account_identity;type:varchar(191)" json:"provider_email"`
	CalendarID    string     `gorm:"uniqueIndex:account_identity;type:varchar(191)" json:"calendar_id"`
	CalendarName  string     `gorm:"type:varchar(150)" json:"calendar_name"`
	Color         string     `gorm:"type:varchar(20)" json:"color"`
	Enabled       bool       `gorm:"default:true" json:"enabled"`
	AccessToken   string     `gorm:"type:text" json:"-"`
	RefreshToken  string     `gorm:"type:text" json:"-"`
	ExpiresAt     *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	FetchCount    int64      `gorm:"default:0" json:"fetch_count"`
	FailureCount  int64      `gorm:"default:0" json:"failure_count"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NeedsCredentials reports whether the provider is accessed with OAuth tokens
func (a *CalendarAccount) NeedsCredentials() bool {
	return a.Provider == "" || a.Provider == CalendarProviderGoogle
}

// TokenExpired reports whether the access token is missing or expires within leeway of now
func (a *CalendarAccount) TokenExpired(now time.Time, leeway time.Duration) bool {
	if a.AccessToken == "" {
		return true
	}
	if a.ExpiresAt == nil {
		return false
	}
	return !a.ExpiresAt.After(now.Add(leeway))
}

// SyncedEvent records a remote event PlanFox created itself from a plan entry
type SyncedEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index" json:"user_id"`
	AccountID     uint      `gorm:"uniqueIndex:synced_entry" json:"account_id"`
	TaskID        uint      `gorm:"uniqueIndex:synced_entry" json:"task_id"`
	PlanDate      string    `gorm:"uniqueIndex:synced_entry;type:char(10)" json:"plan_date"`
	RemoteEventID string    `gorm:"type:varchar(255)" json:"remote_event_id"`
	Fingerprint   string    `gorm:"type:char(16);index" json:"fingerprint"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
