package usecase

import (
	"fmt"
	"time"
)

// FormatRemaining renders a countdown as MM:SS, or HH:MM:SS from one hour up.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	total := int(d / time.Second)
	hours := total / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
