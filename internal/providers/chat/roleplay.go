package chat

import (
	"context"
	"fmt"
	"strings"

	"scenestudio/internal/domain"
	"scenestudio/internal/providers/genai"
)

// Completer produces one roleplay reply for a character conversation.
type Completer interface {
	Complete(ctx context.Context, character domain.Character, history []domain.ChatMessage, message string) (string, error)
}

// GeminiCompleter drives roleplay chat through the Gemini text API. The
// character persona becomes the system instruction so the model stays in
// character across turns.
type GeminiCompleter struct {
	client     *genai.Client
	maxHistory int
}

// NewGeminiCompleter wires a chat completer. maxHistory bounds how many
// prior messages ride along per call.
func NewGeminiCompleter(client *genai.Client, maxHistory int) *GeminiCompleter {
	if maxHistory <= 0 {
		maxHistory = 40
	}
	return &GeminiCompleter{client: client, maxHistory: maxHistory}
}

// Complete fulfils the Completer interface.
func (c *GeminiCompleter) Complete(ctx context.Context, character domain.Character, history []domain.ChatMessage, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message is empty", domain.ErrInvalidRequest)
	}

	if len(history) > c.maxHistory {
		history = history[len(history)-c.maxHistory:]
	}
	turns := make([]genai.ChatTurn, 0, len(history))
	for _, m := range history {
		turns = append(turns, genai.ChatTurn{Role: m.Role, Text: m.Content})
	}

	return c.client.GenerateText(ctx, genai.ChatRequest{
		System:  personaPrompt(character),
		History: turns,
		Message: message,
	})
}

var _ Completer = (*GeminiCompleter)(nil)

func personaPrompt(character domain.Character) string {
	var b strings.Builder
	name := strings.TrimSpace(character.Name)
	if name == "" {
		name = "the character"
	}
	fmt.Fprintf(&b, "You are %s. Stay in character at all times and reply in first person.", name)
	if persona := strings.TrimSpace(character.Persona); persona != "" {
		b.WriteString("\nPersona: ")
		b.WriteString(persona)
	}
	if character.ContentRating == domain.RatingSFW {
		b.WriteString("\nKeep all replies safe for work.")
	}
	return b.String()
}
