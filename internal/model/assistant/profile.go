package assistant

import (
	"fmt"
	"strings"
)

// Profile captures the assistant identity exposed to the frontend and the model.
type Profile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Greeting string   `json:"greeting"`
	Language string   `json:"language"`
	Tone     string   `json:"tone,omitempty"`
	Rules    []string `json:"rules,omitempty"`
}

// Default returns the Seeky profile used when nothing else is configured.
func Default() Profile {
	return Profile{
		ID:       "seeky",
		Name:     "Seeky",
		Title:    "AI assistant",
		Greeting: "Hello! I'm Seeky, your AI assistant. How can I help you today?",
		Language: "en-US",
		Tone:     "friendly, concise, helpful",
		Rules: []string{
			"Answer in the language the user writes in.",
			"Prefer short paragraphs and lists over long walls of text.",
			"Say so plainly when you do not know something.",
		},
	}
}

// SystemPrompt renders the instruction sent ahead of every conversation.
func (p Profile) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.", p.Name, p.Title)
	if p.Tone != "" {
		fmt.Fprintf(&b, " Your tone is %s.", p.Tone)
	}
	if len(p.Rules) > 0 {
		b.WriteString("\n\nRules:\n- ")
		b.WriteString(strings.Join(p.Rules, "\n- "))
	}
	return b.String()
}
