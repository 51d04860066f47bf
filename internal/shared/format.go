package shared

import (
	"fmt"
	"time"
)

// FormatBytes renders a size with binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatRate renders a transfer rate in bytes per second, "-" when idle.
func FormatRate(n int64) string {
	if n <= 0 {
		return "-"
	}
	return FormatBytes(n) + "/s"
}

// FormatETA renders a remaining time in seconds, "-" when unknown (negative).
func FormatETA(seconds int64) string {
	if seconds < 0 {
		return "-"
	}
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return d.String()
	}
	return d.Truncate(time.Minute).String()
}
