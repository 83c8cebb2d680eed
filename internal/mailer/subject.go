package mailer

import (
	"fmt"
	"strings"
	"time"
)

const subjectLayout = "02 Jan 2006 15:04 MST"

// Subject renders "{prefix} {category} Report - {timestamp}" with the
// timestamp in loc. An empty category is dropped.
func Subject(prefix, category string, at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, category, "Report"} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	return fmt.Sprintf("%s - %s", strings.Join(parts, " "), at.In(loc).Format(subjectLayout))
}
