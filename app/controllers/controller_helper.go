package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PlanFox/internal/pkg/planner"
	"github.com/ManuelReschke/PlanFox/internal/pkg/usercontext"
)

const (
	FROM_PROTECTED string = usercontext.KeyFromProtected
)

var validate = validator.New()

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected, _ = protectedValue.(bool)
	}

	return fromProtected
}

// ExtractUsername gets the username from Locals (set by middleware)
func ExtractUsername(c *fiber.Ctx) string {
	if userNameValue := c.Locals(USER_NAME); userNameValue != nil {
		if userName, ok := userNameValue.(string); ok {
			return userName
		}
	}

	return ""
}

// jsonError writes the common {"error", "message"} body
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func unauthorized(c *fiber.Ctx) error {
	return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
}

func badRequest(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusBadRequest, "bad_request", message)
}

func notFound(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusNotFound, "not_found", message)
}

func internalError(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", message)
}

// storeError maps repository errors to 404 / 500
func storeError(c *fiber.Ctx, what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(c, what+" not found")
	}
	log.Errorf("[API] %s: %v", what, err)
	return internalError(c, "Failed to load "+strings.ToLower(what))
}

// planError maps planning errors; invalid input becomes 400 with its detail
func planError(c *fiber.Ctx, err error) error {
	if errors.Is(err, planner.ErrInvalidPlanInput) {
		return badRequest(c, err.Error())
	}
	return storeError(c, "Plan", err)
}

// currentUserID returns the authenticated user or 0
func currentUserID(c *fiber.Ctx) uint {
	return usercontext.UserID(c)
}

// paramID parses a positive numeric route parameter
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// validationMessage flattens validator errors into one line
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
