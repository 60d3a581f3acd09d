package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultMaxDailyTasks   = 8
	DefaultMaxDailyMinutes = 480

	// APIKeyScheme starts every issued key so leaked keys are easy to grep for
	APIKeyScheme      = "pfx_"
	apiKeySecretBytes = 24
	apiKeyShownChars  = 12
)

// UserSettings holds the planning limits and timezone of a user. The API key
// itself is never stored, only its SHA-256 and a short display prefix.
type UserSettings struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"uniqueIndex" json:"user_id"`
	Timezone         string         `gorm:"type:varchar(64);default:''" json:"timezone"`
	MaxDailyTasks    int            `gorm:"default:8" json:"max_daily_tasks"`
	MaxDailyMinutes  int            `gorm:"default:480" json:"max_daily_minutes"`
	APIKeyHash       string         `gorm:"type:char(64);default:''" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time     `json:"api_key_created_at"`
	APIKeyLastUsedAt *time.Time     `json:"api_key_last_used_at"`
	APIKeyRevokedAt  *time.Time     `json:"api_key_revoked_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// LoadUserSettings returns the settings row of a user and inserts one with
// the default limits when the user has none yet
func LoadUserSettings(db *gorm.DB, userID uint) (*UserSettings, error) {
	settings := UserSettings{}
	err := db.Where(UserSettings{UserID: userID}).
		Attrs(UserSettings{MaxDailyTasks: DefaultMaxDailyTasks, MaxDailyMinutes: DefaultMaxDailyMinutes}).
		FirstOrCreate(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (us *UserSettings) DailyTaskLimit() int {
	if us == nil || us.MaxDailyTasks <= 0 {
		return DefaultMaxDailyTasks
	}
	return us.MaxDailyTasks
}

func (us *UserSettings) DailyMinuteLimit() int {
	if us == nil || us.MaxDailyMinutes <= 0 {
		return DefaultMaxDailyMinutes
	}
	return us.MaxDailyMinutes
}

// Location resolves the planning timezone, def when unset or unknown
func (us *UserSettings) Location(def *time.Location) *time.Location {
	if us == nil || us.Timezone == "" {
		return def
	}
	if loc, err := time.LoadLocation(us.Timezone); err == nil {
		return loc
	}
	return def
}

func (us *UserSettings) HasActiveAPIKey() bool {
	return us != nil && us.APIKeyHash != "" && us.APIKeyRevokedAt == nil
}

// IssueAPIKey replaces any previous key and returns the new secret. Only the
// hash survives, so the caller has to hand the secret out right away and
// save the settings.
func (us *UserSettings) IssueAPIKey() (string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	key := APIKeyScheme + hex.EncodeToString(secret)

	now := time.Now()
	us.APIKeyHash = HashAPIKey(key)
	us.APIKeyPrefix = key[:apiKeyShownChars]
	us.APIKeyCreatedAt = &now
	us.APIKeyLastUsedAt = nil
	us.APIKeyRevokedAt = nil
	return key, nil
}

// RevokeAPIKey forgets the key but keeps when it was revoked
func (us *UserSettings) RevokeAPIKey() {
	now := time.Now()
	us.APIKeyHash, us.APIKeyPrefix = "", ""
	us.APIKeyLastUsedAt = nil
	us.APIKeyRevokedAt = &now
}

func (us *UserSettings) TouchAPIKeyUsage() {
	now := time.Now()
	us.APIKeyLastUsedAt = &now
}

// HashAPIKey is the lookup hash of a presented key
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
