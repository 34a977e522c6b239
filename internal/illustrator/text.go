package illustrator

import "strings"

// cleanDescription trims a model reply and removes a surrounding markdown
// code fence, which some models add even when asked for plain prose.
func cleanDescription(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return strings.TrimSpace(strings.Trim(text, "`"))
	}
	end := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
