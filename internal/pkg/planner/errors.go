package planner

import "errors"

var (
	// ErrInvalidPlanInput marks malformed dates, task lists or time slots. Nothing is persisted.
	ErrInvalidPlanInput = errors.New("invalid plan input")
	// ErrAutoScheduleFailed marks a scheduler that could not produce a complete, valid assignment.
	ErrAutoScheduleFailed = errors.New("auto schedule failed")
)
