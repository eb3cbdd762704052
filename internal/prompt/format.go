package prompt

import (
	"regexp"
	"strings"

	"github.com/starford/quire/internal/blocks"
)

var toUserRe = regexp.MustCompile(`(?is)<TOUSER>(.*?)</TOUSER>`)

// FormatResponse turns a raw model reply into document text. Content inside
// <TOUSER> tags becomes an assistant region; everything else becomes a
// folded "> thinking..." callout above it. Without tags the whole reply is
// assistant content.
func FormatResponse(resp string) string {
	var user, thinking string
	if m := toUserRe.FindStringSubmatch(resp); m != nil {
		user = strings.TrimSpace(m[1])
		thinking = strings.TrimSpace(toUserRe.ReplaceAllString(resp, ""))
	} else {
		user = strings.TrimSpace(resp)
	}

	var parts []string
	if thinking != "" {
		parts = append(parts, "\n\n"+blocks.ThinkingHeader)
		for _, line := range strings.Split(thinking, "\n") {
			if strings.TrimSpace(line) != "" {
				parts = append(parts, "> "+line)
			}
		}
	}
	if user != "" {
		parts = append(parts, "\n\n"+blocks.StartMarker, user, blocks.EndMarker)
	}
	return strings.Join(parts, "\n")
}
