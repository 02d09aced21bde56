package memory

import "strings"

// contextItemCap bounds how many preferences and past-conversation summaries
// flow into the system prompt.
const contextItemCap = 3

// BuildContext formats preferences and past-conversation summaries into the
// context block appended to the system prompt. Returns "" when there is
// nothing to inject.
func BuildContext(preferences, summaries []string) string {
	var parts []string

	if len(preferences) > 0 {
		parts = append(parts, "User Preferences:")
		for _, pref := range capped(preferences) {
			parts = append(parts, "- "+pref)
		}
	}

	if len(summaries) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "")
		}
		parts = append(parts, "Relevant Past Conversations:")
		for _, summary := range capped(summaries) {
			parts = append(parts, "- "+summary)
		}
	}

	return strings.Join(parts, "\n")
}

func capped(items []string) []string {
	if len(items) > contextItemCap {
		return items[:contextItemCap]
	}
	return items
}
