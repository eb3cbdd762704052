// Package prompt detects @#name triggers in note text, loads prompt
// definitions from the vault and formats model replies for insertion.
package prompt

import (
	"regexp"
	"strings"
)

var triggerRe = regexp.MustCompile(`@#(\w+)`)

// Trigger is one @#name occurrence. Start and End are byte offsets of the
// whole token.
type Trigger struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// FindTriggers returns every trigger in text whose name is in known.
// A nil known accepts any name.
func FindTriggers(text string, known []string) []Trigger {
	var accept map[string]bool
	if known != nil {
		accept = make(map[string]bool, len(known))
		for _, k := range known {
			accept[k] = true
		}
	}
	var out []Trigger
	for _, m := range triggerRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		if accept != nil && !accept[name] {
			continue
		}
		out = append(out, Trigger{Name: name, Start: m[0], End: m[1]})
	}
	return out
}

// TriggerAt returns the trigger covering pos, End inclusive so a cursor
// placed right after the token still finds it.
func TriggerAt(text string, pos int, known []string) (Trigger, bool) {
	for _, t := range FindTriggers(text, known) {
		if t.Start <= pos && pos <= t.End {
			return t, true
		}
	}
	return Trigger{}, false
}

// ExtractUserText returns the text a trigger at start applies to: the last
// blank-line separated paragraph before it, or failing that the last three
// lines.
func ExtractUserText(text string, start int) string {
	if start > len(text) {
		start = len(text)
	}
	if start < 0 {
		start = 0
	}
	before := strings.TrimSpace(text[:start])
	if i := strings.LastIndex(before, "\n\n"); i >= 0 {
		return strings.TrimSpace(before[i:])
	}
	lines := strings.Split(before, "\n")
	if len(lines) > 3 {
		return strings.TrimSpace(strings.Join(lines[len(lines)-3:], "\n"))
	}
	return before
}
