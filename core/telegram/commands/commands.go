package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	// Aliases are extra texts that trigger the command, such as reply
	// keyboard labels.
	Aliases []string
}

// Visible reports whether the command belongs in the public command menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}

// Matches reports whether text equals one of the aliases, with or without a
// leading slash.
func (c Command) Matches(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	bare := strings.TrimPrefix(text, "/")
	for _, alias := range c.Aliases {
		if alias == text || alias == bare {
			return true
		}
	}
	return false
}
