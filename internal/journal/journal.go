// Package journal names and titles daily journal entries.
package journal

import (
	"fmt"
	"path"
	"time"

	"github.com/starford/quire/internal/models"
)

// OrdinalSuffix returns "st", "nd", "rd" or "th" for a day of the month.
func OrdinalSuffix(day int) string {
	if n := day % 100; n >= 10 && n <= 20 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

// Title formats a date like "Thursday 29th May 2025".
func Title(t time.Time) string {
	return fmt.Sprintf("%s %d%s %s %d", t.Weekday(), t.Day(), OrdinalSuffix(t.Day()), t.Month(), t.Year())
}

// Header is the content written to a fresh journal entry.
func Header(t time.Time) string {
	return "# " + Title(t) + "\n\n"
}

// RelPath is the vault-relative, slash-separated path of the entry for t:
// .journal/YYYY/MM/DD.md.
func RelPath(t time.Time) string {
	return path.Join(models.JournalDir, t.Format("2006"), t.Format("01"), t.Format("02")+".md")
}
