package conversation

import "strings"

// titleWordLimit is how many leading words of the first user message are kept
// when auto-deriving a conversation title.
const titleWordLimit = 6

// DeriveTitle builds a short display title from the first user message in
// msgs. It keeps the leading words and appends an ellipsis when truncated.
// Returns DefaultTitle when no user message with words exists.
func DeriveTitle(msgs []Message) string {
	for _, m := range msgs {
		if m.Role != RoleUser {
			continue
		}
		words := strings.Fields(m.Content)
		if len(words) == 0 {
			break
		}
		if len(words) <= titleWordLimit {
			return strings.Join(words, " ")
		}
		return strings.Join(words[:titleWordLimit], " ") + "…"
	}
	return DefaultTitle
}
