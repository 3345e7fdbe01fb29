// Package format renders sizes and timestamps for list output and picker rows.
package format

import (
	"fmt"
	"time"
)

const (
	kb = 1024
	mb = 1024 * 1024
)

// Size renders a byte count as a short human-readable size.
func Size(bytes int) string {
	switch {
	case bytes < kb:
		return fmt.Sprintf("%dB", bytes)
	case bytes < mb:
		return fmt.Sprintf("%.1fKB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%.1fMB", float64(bytes)/mb)
	}
}

// RelativeTime renders a millisecond unix timestamp as "5m ago"-style text.
func RelativeTime(millis int64) string {
	return relativeTime(millis, time.Now().UnixMilli())
}

func relativeTime(millis, now int64) string {
	secs := (now - millis) / 1000
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh ago", secs/3600)
	default:
		return fmt.Sprintf("%dd ago", secs/86400)
	}
}
