package logger

import "strings"

// Canonical level names as they appear in log output.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var levelAliases = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// normalizeLevel maps a free-form level string onto a canonical name.
// Unknown levels pass through uppercased so they stay visible.
func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if canonical, ok := levelAliases[strings.ToLower(level)]; ok {
		return canonical
	}
	return strings.ToUpper(level)
}

var statusValues = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"rate_limited": {},
	"cancelled":    {},
}

// normalizeStatus lowercases a status value and reports whether it is one
// of the known vocabulary words.
func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "", false
	}
	_, known := statusValues[status]
	return status, known
}

var outcomeValues = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"cancelled":    {},
	"rate_limited": {},
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	if outcome == "" {
		return "", false
	}
	if _, ok := outcomeValues[outcome]; ok {
		return outcome, true
	}
	return "", false
}

// defaultKeyOrder pins the leading keys of every log line so lines from
// different components stay scannable. Keys absent from the list render
// after these, sorted alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"run_id",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"table",
	"ticker",
	"amount",
	"page",
	"pages",
	"count",
	"shares_total",
	"shares_skipped",
	"users_total",
	"users_notified",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
}
