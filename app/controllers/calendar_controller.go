package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/calendar"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planning"
)

const (
	connectStatePrefix = "calendar:state:"
	connectStateTTL    = 10 * time.Minute
)

// AccountStore is the part of the calendar account repository the controller uses
type AccountStore interface {
	ListByUser(userID uint) ([]models.CalendarAccount, error)
	GetByIDForUser(id, userID uint) (*models.CalendarAccount, error)
	Upsert(account *models.CalendarAccount) error
	UpdateSettings(id uint, name *string, color *string, enabled *bool) error
	Delete(id uint) error
}

// CalendarConnector runs the OAuth flow that connects a Google calendar
type CalendarConnector interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	PrimaryCalendar(ctx context.Context, accessToken string) (email, name string, err error)
}

// FeedValidator checks that an ICS subscription can be loaded
type FeedValidator interface {
	Validate(ctx context.Context, feedURL string) error
}

// StateStore keeps OAuth state nonces until the callback consumes them
type StateStore interface {
	Set(key string, value interface{}, expiration time.Duration) error
	GetDel(key string) (string, error)
}

// CalendarController serves events, focus blocks and account management
type CalendarController struct {
	service     *planning.Service
	accounts    AccountStore
	connector   CalendarConnector
	feeds       FeedValidator
	states      StateStore
	settingsURL string
}

// NewCalendarController creates the controller. connector may be nil when
// Google credentials are not configured.
func NewCalendarController(service *planning.Service, accounts AccountStore, connector CalendarConnector, feeds FeedValidator, states StateStore) *CalendarController {
	return &CalendarController{
		service:     service,
		accounts:    accounts,
		connector:   connector,
		feeds:       feeds,
		states:      states,
		settingsURL: "/settings",
	}
}

// WithSettingsURL changes where the OAuth callback redirects to
func (cc *CalendarController) WithSettingsURL(u string) *CalendarController {
	if u != "" {
		cc.settingsURL = u
	}
	return cc
}

type connectState struct {
	UserID       uint   `json:"userId"`
	CalendarName string `json:"calendarName"`
	Color        string `json:"color"`
}

type connectRequest struct {
	CalendarName string `json:"calendarName" validate:"omitempty,max=150"`
	Color        string `json:"color" validate:"omitempty,hexcolor"`
}

type subscribeRequest struct {
	URL          string `json:"url" validate:"required,max=2000"`
	CalendarName string `json:"calendarName" validate:"omitempty,max=150"`
	Color        string `json:"color" validate:"omitempty,hexcolor"`
}

type updateAccountRequest struct {
	Enabled      *bool   `json:"enabled"`
	CalendarName *string `json:"calendarName" validate:"omitempty,min=1,max=150"`
	Color        *string `json:"color" validate:"omitempty,hexcolor"`
}

// HandleEvents returns the merged events of all enabled accounts for a date.
// Any failure degrades to an empty list.
func (cc *CalendarController) HandleEvents(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	hide, _ := strconv.ParseBool(c.Query("hideDuplicates"))

	events, err := cc.service.Events(c.UserContext(), userID, c.Query("date"), hide)
	if err != nil {
		log.Warnf("[Calendar] Events for user %d: %v", userID, err)
		return c.JSON([]calendar.CalendarEvent{})
	}
	return c.JSON(events)
}

// HandleFocusBlocks returns the free ranges of the working day
func (cc *CalendarController) HandleFocusBlocks(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	minMinutes := 0
	if v := c.Query("minMinutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1440 {
			return badRequest(c, "minMinutes must be between 1 and 1440")
		}
		minMinutes = n
	}

	blocks, err := cc.service.FocusBlocks(c.UserContext(), userID, c.Query("date"), minMinutes)
	if err != nil {
		return planError(c, err)
	}
	return c.JSON(blocks)
}

// HandleListAccounts lists the user's connected calendars
func (cc *CalendarController) HandleListAccounts(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	accounts, err := cc.accounts.ListByUser(userID)
	if err != nil {
		return storeError(c, "Calendar accounts", err)
	}
	if accounts == nil {
		accounts = []models.CalendarAccount{}
	}
	return c.JSON(accounts)
}

// HandleConnectAccount starts the Google consent flow and returns its URL
func (cc *CalendarController) HandleConnectAccount(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	if cc.connector == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "not_configured", "Google calendar integration is not configured")
	}

	var req connectRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid payload")
		}
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	state := connectState{
		UserID:       userID,
		CalendarName: firstNonEmpty(req.CalendarName, models.DefaultCalendarName),
		Color:        firstNonEmpty(req.Color, models.DefaultCalendarColor),
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return internalError(c, "Failed to start authorization")
	}
	nonce := uuid.New().String()
	if err := cc.states.Set(connectStatePrefix+nonce, string(payload), connectStateTTL); err != nil {
		log.Errorf("[Calendar] Failed to store OAuth state: %v", err)
		return internalError(c, "Failed to start authorization")
	}

	return c.JSON(fiber.Map{"authUrl": cc.connector.AuthCodeURL(nonce)})
}

// HandleCallback finishes the consent flow and stores the account. It always
// redirects to the settings page.
func (cc *CalendarController) HandleCallback(c *fiber.Ctx) error {
	if c.Query("error") != "" {
		return cc.redirectError(c, "access_denied")
	}
	code, nonce := c.Query("code"), c.Query("state")
	if code == "" || nonce == "" {
		return cc.redirectError(c, "missing_params")
	}

	raw, err := cc.states.GetDel(connectStatePrefix + nonce)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Errorf("[Calendar] OAuth state lookup failed: %v", err)
		}
		return cc.redirectError(c, "invalid_state")
	}
	var state connectState
	if err := json.Unmarshal([]byte(raw), &state); err != nil || state.UserID == 0 {
		return cc.redirectError(c, "invalid_state")
	}
	if cc.connector == nil {
		return cc.redirectError(c, "exchange_failed")
	}

	ctx := c.UserContext()
	tok, err := cc.connector.Exchange(ctx, code)
	if err != nil {
		log.Warnf("[Calendar] Code exchange for user %d failed: %v", state.UserID, err)
		return cc.redirectError(c, "exchange_failed")
	}
	email, _, err := cc.connector.PrimaryCalendar(ctx, tok.AccessToken)
	if err != nil {
		log.Warnf("[Calendar] Resolving primary calendar for user %d failed: %v", state.UserID, err)
		return cc.redirectError(c, "exchange_failed")
	}

	account := &models.CalendarAccount{
		UserID:        state.UserID,
		Provider:      models.CalendarProviderGoogle,
		ProviderEmail: email,
		CalendarID:    "primary",
		CalendarName:  state.CalendarName,
		Color:         state.Color,
		Enabled:       true,
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		account.ExpiresAt = &exp
	}
	if err := cc.accounts.Upsert(account); err != nil {
		log.Errorf("[Calendar] Saving account for user %d failed: %v", state.UserID, err)
		return cc.redirectError(c, "exchange_failed")
	}

	log.Infof("[Calendar] Connected calendar %d for user %d", account.ID, state.UserID)
	return c.Redirect(cc.settingsURL+"?calendarAdded=true", fiber.StatusFound)
}

func (cc *CalendarController) redirectError(c *fiber.Ctx, reason string) error {
	return c.Redirect(cc.settingsURL+"?calendarError="+url.QueryEscape(reason), fiber.StatusFound)
}

// HandleSubscribeICS adds a read-only ICS feed as a calendar account
func (cc *CalendarController) HandleSubscribeICS(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid payload")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}
	feedURL, err := calendar.NormalizeFeedURL(req.URL)
	if err != nil {
		return badRequest(c, "Invalid calendar feed URL")
	}
	if cc.feeds != nil {
		if err := cc.feeds.Validate(c.UserContext(), feedURL); err != nil {
			log.Warnf("[Calendar] Feed validation for user %d failed: %v", userID, err)
			return badRequest(c, "Could not load calendar feed")
		}
	}

	account := &models.CalendarAccount{
		UserID:       userID,
		Provider:     models.CalendarProviderICS,
		CalendarID:   feedURL,
		CalendarName: firstNonEmpty(req.CalendarName, models.DefaultCalendarName),
		Color:        firstNonEmpty(req.Color, models.DefaultCalendarColor),
		Enabled:      true,
	}
	if err := cc.accounts.Upsert(account); err != nil {
		return storeError(c, "Calendar account", err)
	}
	return c.Status(fiber.StatusCreated).JSON(account)
}

// HandleUpdateAccount changes name, color or the enabled flag
func (cc *CalendarController) HandleUpdateAccount(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid account id")
	}
	var req updateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid payload")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	if _, err := cc.accounts.GetByIDForUser(id, userID); err != nil {
		return storeError(c, "Calendar account", err)
	}
	if err := cc.accounts.UpdateSettings(id, req.CalendarName, req.Color, req.Enabled); err != nil {
		return storeError(c, "Calendar account", err)
	}
	account, err := cc.accounts.GetByIDForUser(id, userID)
	if err != nil {
		return storeError(c, "Calendar account", err)
	}
	return c.JSON(account)
}

// HandleDeleteAccount disconnects a calendar
func (cc *CalendarController) HandleDeleteAccount(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid account id")
	}
	if _, err := cc.accounts.GetByIDForUser(id, userID); err != nil {
		return storeError(c, "Calendar account", err)
	}
	if err := cc.accounts.Delete(id); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return storeError(c, "Calendar account", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
