package bot

import (
	"fmt"
	"strings"

	"whatsdesk/internal/knowledge"
	"whatsdesk/internal/llm"
	"whatsdesk/internal/models"
)

// ===========================================================================
// Prompt Builder
// Turns persona, knowledge matches and conversation history into the
// chat-completion message list
// ===========================================================================

type PromptBuilder interface {
	// SystemPrompt persona prompt plus the matched knowledge section
	SystemPrompt(persona *models.Persona, contact *models.Contact, matches []knowledge.Match) string

	// Build system message followed by the history (incoming as user, outgoing as assistant)
	Build(persona *models.Persona, contact *models.Contact, history []models.Message, matches []knowledge.Match) []llm.Message
}

type promptBuilder struct{}

func NewPromptBuilder() PromptBuilder {
	return &promptBuilder{}
}

const defaultSystemPrompt = "You are a helpful customer service assistant answering WhatsApp messages. Be brief and friendly."

func (b *promptBuilder) SystemPrompt(persona *models.Persona, contact *models.Contact, matches []knowledge.Match) string {
	var sb strings.Builder

	prompt := strings.TrimSpace(persona.SystemPrompt)
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	sb.WriteString(prompt)

	if contact != nil {
		if name := contact.DisplayName(); name != "" && name != contact.Phone {
			fmt.Fprintf(&sb, "\n\nThe customer's name is %s.", name)
		}
	}

	if len(matches) > 0 {
		sb.WriteString("\n\nUse the following knowledge base excerpts when they are relevant to the question:\n")
		for i, m := range matches {
			fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, m.Content)
		}
	}

	return sb.String()
}

func (b *promptBuilder) Build(persona *models.Persona, contact *models.Contact, history []models.Message, matches []knowledge.Match) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: b.SystemPrompt(persona, contact, matches),
	})

	for i := range history {
		msg := &history[i]
		content := msg.Preview()
		if strings.TrimSpace(content) == "" {
			continue
		}
		role := llm.RoleAssistant
		if msg.IsIncoming() {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: content})
	}

	return messages
}
