package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AI2HU/brandlens/internal/logger"
)

// validateCronExpression validates a standard five-field cron expression or descriptor
func validateCronExpression(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}
	if _, err := cron.ParseStandard(input); err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", input, err)
	}
	return input, nil
}

// validateMongoURI defaults to a local server
func validateMongoURI(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "mongodb://localhost:27017", nil
	}
	if !strings.HasPrefix(input, "mongodb://") && !strings.HasPrefix(input, "mongodb+srv://") {
		return "", fmt.Errorf("URI must start with mongodb:// or mongodb+srv://")
	}
	return input, nil
}

// validateNumber validates numeric input within a range
func validateNumber(input string, def, min, max int) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}

	num, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s (enter a positive integer)", input)
	}

	if num < min || num > max {
		return 0, fmt.Errorf("number must be between %d and %d, got: %d", min, max, num)
	}

	return num, nil
}

// maskSensitiveData masks sensitive data for display
func maskSensitiveData(data string) string {
	if data == "" {
		return "(not set)"
	}
	return logger.MaskSecret(data)
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// formatCount formats a count for display
func formatCount(count int) string {
	if count < 1000 {
		return fmt.Sprintf("%d", count)
	}
	if count < 1000000 {
		return fmt.Sprintf("%.1fK", float64(count)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(count)/1000000)
}
