package handler

import (
	"strings"

	"github.com/mymmrac/telego"
)

// ValidationError carries a user-visible message for a malformed
// command argument. It never reaches the collector.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Command is a parsed bot command together with the values its
// handler's validation extracted from the raw arguments.
type Command struct {
	Name     string
	Username string
	Args     []string
	Offset   int
	Message  telego.Message

	// populated by Validate
	TTL         int64
	HasTTL      bool
	MaxAttempts int
}

// ParseCommand extracts the first bot command from the message, or nil
// if the message carries none.
func ParseCommand(message telego.Message) *Command {
	var entity *telego.MessageEntity
	for i := range message.Entities {
		if message.Entities[i].Type == "bot_command" {
			entity = &message.Entities[i]
			break
		}
	}

	if entity == nil || message.Text == "" {
		return nil
	}
	if entity.Offset < 0 || entity.Offset+entity.Length > len(message.Text) || entity.Length < 2 {
		return nil
	}

	name := strings.ToLower(message.Text[entity.Offset+1 : entity.Offset+entity.Length])
	name, username, _ := strings.Cut(name, "@")

	rest := message.Text[entity.Offset+entity.Length:]
	args := strings.Fields(rest)

	return &Command{
		Name:     name,
		Username: username,
		Args:     args,
		Offset:   entity.Offset,
		Message:  message,
	}
}
