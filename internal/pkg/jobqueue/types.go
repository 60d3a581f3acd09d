package jobqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type JobType string

const (
	// JobTypeCalendarRefresh renews one account's OAuth credential ahead of expiry
	JobTypeCalendarRefresh JobType = "calendar_refresh"
	// JobTypePlanPush writes the time-boxed entries of a daily plan to Google Calendar
	JobTypePlanPush JobType = "plan_push"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job is the record stored under JobKeyPrefix+ID. Payload holds decoded
// JSON, so numbers come back as float64 after a round trip through Redis.
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

type CalendarRefreshJobPayload struct {
	AccountID uint `json:"account_id" validate:"required"`
}

func (p CalendarRefreshJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{"account_id": p.AccountID}
}

func CalendarRefreshJobPayloadFromMap(data map[string]interface{}) (*CalendarRefreshJobPayload, error) {
	return decodePayload[CalendarRefreshJobPayload](data)
}

type PlanPushJobPayload struct {
	UserID uint   `json:"user_id" validate:"required"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (p PlanPushJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{"user_id": p.UserID, "date": p.Date}
}

func PlanPushJobPayloadFromMap(data map[string]interface{}) (*PlanPushJobPayload, error) {
	return decodePayload[PlanPushJobPayload](data)
}

var payloadValidator = validator.New()

// decodePayload re-encodes a stored payload map into its typed struct and
// checks the required fields
func decodePayload[T any](data map[string]interface{}) (*T, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	payload := new(T)
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, err
	}
	if err := payloadValidator.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return payload, nil
}

// IsRetryable reports whether a failed job has attempts left
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

func (j *Job) transition(status JobStatus) time.Time {
	now := time.Now()
	j.Status = status
	j.UpdatedAt = now
	return now
}

func (j *Job) MarkAsProcessing() {
	now := j.transition(JobStatusProcessing)
	j.ProcessedAt = &now
}

func (j *Job) MarkAsCompleted() {
	now := j.transition(JobStatusCompleted)
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed records the error and counts the attempt
func (j *Job) MarkAsFailed(errorMsg string) {
	j.transition(JobStatusFailed)
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

func (j *Job) MarkAsRetrying() {
	j.transition(JobStatusRetrying)
}
