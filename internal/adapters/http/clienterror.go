package http

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/fheinonen/helsinki-moves/internal/pkg/metrics"
)

// Limits for client error report payloads. Reports come from untrusted
// browsers, so every dimension of the payload is bounded.
const (
	maxReportBytes        = 8000
	maxContextDepth       = 3
	maxContextKeys        = 30
	maxContextArrayItems  = 30
	maxContextStringChars = 200
)

// clientErrorReport is the sanitized shape that gets logged and
// published. Unknown incoming fields are dropped.
type clientErrorReport struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Stack     string `json:"stack"`
	URL       string `json:"url"`
	UserAgent string `json:"userAgent"`
	Timestamp string `json:"timestamp"`
	Context   any    `json:"context"`
}

// ClientErrorHandler accepts browser error reports, sanitizes them, and
// forwards them to the telemetry stream.
func ClientErrorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store")

		body := c.Body()
		if len(body) == 0 {
			return errBadRequest(c, "Invalid payload")
		}
		if len(body) > maxReportBytes {
			return errPayloadTooLarge(c)
		}

		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
			return errBadRequest(c, "Invalid payload")
		}

		report := sanitizeReport(payload)
		sanitized, err := json.Marshal(report)
		if err != nil {
			return errBadRequest(c, "Invalid payload")
		}
		if len(sanitized) > maxReportBytes {
			return errPayloadTooLarge(c)
		}

		slog.Error("client error report",
			"type", report.Type,
			"message", report.Message,
			"url", report.URL,
		)
		metrics.ClientErrorReports.Inc()

		if deps.Publisher != nil {
			if err := deps.Publisher.PublishClientError(c.UserContext(), sanitized); err != nil {
				slog.Warn("client error publish failed", "error", err)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func sanitizeReport(payload map[string]any) clientErrorReport {
	return clientErrorReport{
		Type:      safeString(payload["type"], 40),
		Message:   safeString(payload["message"], 400),
		Stack:     safeString(payload["stack"], 1200),
		URL:       safeString(payload["url"], 500),
		UserAgent: safeString(payload["userAgent"], 300),
		Timestamp: safeString(payload["timestamp"], 40),
		Context:   sanitizeContext(payload["context"], 0),
	}
}

// sanitizeContext bounds arbitrary context values: strings are capped,
// nesting is cut at maxContextDepth, and maps and arrays are truncated.
func sanitizeContext(value any, depth int) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return safeString(v, maxContextStringChars)
	case bool, float64:
		return v
	}

	if depth >= maxContextDepth {
		return "[Truncated]"
	}

	switch v := value.(type) {
	case []any:
		items := v
		if len(items) > maxContextArrayItems {
			items = items[:maxContextArrayItems]
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = sanitizeContext(item, depth+1)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		kept := 0
		for key, item := range v {
			if kept == maxContextKeys {
				out["_truncated"] = true
				break
			}
			out[safeString(key, 60)] = sanitizeContext(item, depth+1)
			kept++
		}
		return out
	}

	return safeString(value, maxContextStringChars)
}

func safeString(value any, maxChars int) string {
	text, _ := value.(string)
	if len(text) <= maxChars {
		return text
	}
	// Cut on a rune boundary.
	runes := []rune(text)
	for len(runes) > 0 && len(string(runes)) > maxChars {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
