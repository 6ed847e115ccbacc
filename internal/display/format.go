// Package display renders the reader context's view of the row store
// (spec.md §1 calls the table renderer an external collaborator; this
// package is the one the teacher ships alongside its own store). It reads
// through internal/store's query surface only — it never touches the
// ingest path.
package display

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numberPrinter = message.NewPrinter(language.English)

// formatBytes renders a byte count in human-readable units.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// formatNumber renders n with locale-aware thousands separators.
func formatNumber(n int64) string {
	return numberPrinter.Sprintf("%d", n)
}

// formatAge renders a duration as a compact age string.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "<1s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

// truncateEndpoint truncates "host:port" to maxLen while preserving the
// port, e.g. "very-long-hostname.example.com:443" -> "very-long-hos…:443".
func truncateEndpoint(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	lastColon := strings.LastIndex(s, ":")
	if lastColon == -1 {
		return s[:maxLen-1] + "…"
	}
	port := s[lastColon:]
	hostMaxLen := maxLen - 1 - len(port)
	if hostMaxLen <= 3 {
		return s[:maxLen-1] + "…"
	}
	return s[:lastColon][:hostMaxLen] + "…" + port
}

func formatEndpoint(ip string, port int) string {
	if port == 0 {
		return ip
	}
	return fmt.Sprintf("%s:%d", ip, port)
}
