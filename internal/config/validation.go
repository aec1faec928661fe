package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Validate validates the configuration and returns any errors
func (c *Config) Validate() error {
	var errors ValidationErrors

	if c.App.LogLevel != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !contains(validLevels, c.App.LogLevel) {
			errors = append(errors, ValidationError{
				Field:   "app.log_level",
				Message: fmt.Sprintf("must be one of: %v", validLevels),
			})
		}
	}

	if c.Telegram.APIID == "" {
		errors = append(errors, ValidationError{
			Field:   "telegram.api_id",
			Message: "api id is required",
		})
	} else if _, err := strconv.Atoi(c.Telegram.APIID); err != nil {
		errors = append(errors, ValidationError{
			Field:   "telegram.api_id",
			Message: fmt.Sprintf("must be numeric, got %q", c.Telegram.APIID),
		})
	}

	if c.Telegram.APIHash == "" {
		errors = append(errors, ValidationError{
			Field:   "telegram.api_hash",
			Message: "api hash is required",
		})
	}

	if c.Telegram.PhoneNumber == "" {
		errors = append(errors, ValidationError{
			Field:   "telegram.phone_number",
			Message: "phone number is required",
		})
	}

	if c.Telegram.DialogLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "telegram.dialog_limit",
			Message: "dialog limit must be positive",
		})
	}

	if c.Batch.DelaySeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "batch.delay_seconds",
			Message: "delay seconds must be non-negative",
		})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if c.Server.ScheduleEnabled && c.Server.Schedule == "" {
		errors = append(errors, ValidationError{
			Field:   "server.schedule",
			Message: "schedule must be provided when schedule_enabled is true",
		})
	}

	if len(errors) > 0 {
		return errors
	}

	return nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
