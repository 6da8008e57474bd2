package scope

import (
	"log/slog"
	"regexp"
)

var invalidTimingChars = regexp.MustCompile(`[^a-zA-Z0-9_.@$-]`)

// sanitizeTimingName replaces characters outside [a-zA-Z0-9_.@$-] with '_'.
func sanitizeTimingName(name string, logger *slog.Logger) string {
	sanitized := invalidTimingChars.ReplaceAllString(name, "_")
	if sanitized != name {
		logger.Warn("custom timing name contains invalid characters",
			slog.String("original", name),
			slog.String("sanitized", sanitized))
	}
	return sanitized
}
