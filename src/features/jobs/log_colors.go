package jobs

import (
	"fmt"
	"html"
	"strings"
)

// ColorLogContent escapes a job log and wraps each line in a span classed by its level.
// Lines are expected in slog text format (level=INFO msg=...).
func ColorLogContent(content string) string {
	lines := strings.Split(content, "\n")
	colored := make([]string, 0, len(lines))

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			colored = append(colored, line)
			continue
		}
		escaped := html.EscapeString(line)
		switch extractLogLevel(line) {
		case "ERROR":
			colored = append(colored, fmt.Sprintf(`<span class="log-error">%s</span>`, escaped))
		case "WARN", "WARNING":
			colored = append(colored, fmt.Sprintf(`<span class="log-warning">%s</span>`, escaped))
		case "DEBUG":
			colored = append(colored, fmt.Sprintf(`<span class="log-debug">%s</span>`, escaped))
		default:
			if strings.Contains(line, `msg="Copy job finished"`) {
				colored = append(colored, fmt.Sprintf(`<span class="log-green">%s</span>`, escaped))
				continue
			}
			colored = append(colored, escaped)
		}
	}

	return strings.Join(colored, "\n")
}

// extractLogLevel extracts the log level from a log line
func extractLogLevel(line string) string {
	idx := strings.Index(line, "level=")
	if idx == -1 {
		return ""
	}
	rest := line[idx+len("level="):]
	if end := strings.IndexByte(rest, ' '); end != -1 {
		rest = rest[:end]
	}
	return strings.ToUpper(rest)
}
