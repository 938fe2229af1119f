package prompt

import (
	"fmt"
	"strings"
)

const systemInstruction = "You are a comedian who tells clean, family-friendly jokes. " +
	"Reply with the joke only, no preamble."

// Pair is a system/user message pair ready to send to a chat-completion API.
type Pair struct {
	System string
	User   string
}

// Build turns an optional keyword string into a prompt pair. Blank or
// whitespace-only keywords are treated the same as no keywords at all.
func Build(keywords string) Pair {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return Pair{
			System: systemInstruction,
			User:   "Tell me a clean, family-friendly joke.",
		}
	}
	return Pair{
		System: systemInstruction,
		User:   fmt.Sprintf("Tell me a clean, family-friendly joke about %s.", keywords),
	}
}
