package service

import (
	"fmt"
	"strings"

	"docchat/internal/rag"
)

const answerSystemPrompt = "You are a helpful assistant that answers questions about the user's documents. " +
	"Answer using only the information in the context below. If the context does not contain " +
	"the answer, say that you don't know instead of making one up."

const condenseSystemPrompt = "Rewrite the user's follow-up question as a standalone question that can be " +
	"understood without the conversation. Resolve pronouns and references using the conversation, " +
	"keep the original language, and reply with the question only."

// answerMessages builds the generation request: grounding context in ranked order,
// the conversation so far, then the question as the user asked it.
func answerMessages(p rag.Prompt) []rag.Message {
	var b strings.Builder
	b.WriteString(answerSystemPrompt)
	b.WriteString("\n\n--- Context from documents ---\n\n")
	for i, text := range p.Context {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	b.WriteString("\n\n--- End Context ---")

	messages := make([]rag.Message, 0, len(p.History)+2)
	messages = append(messages, rag.Message{Role: "system", Content: b.String()})
	for _, turn := range p.History {
		messages = append(messages, rag.Message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, rag.Message{Role: string(rag.RoleUser), Content: p.Question})
	return messages
}

// condenseMessages asks the model to turn a follow-up question into a standalone one.
func condenseMessages(history []rag.Turn, question string) []rag.Message {
	var b strings.Builder
	b.WriteString("Conversation:\n")
	for _, turn := range history {
		fmt.Fprintf(&b, "%s: %s\n", roleLabel(turn.Role), turn.Content)
	}
	fmt.Fprintf(&b, "\nFollow-up question: %s\nStandalone question:", question)

	return []rag.Message{
		{Role: "system", Content: condenseSystemPrompt},
		{Role: string(rag.RoleUser), Content: b.String()},
	}
}

func roleLabel(r rag.Role) string {
	if r == rag.RoleAssistant {
		return "Assistant"
	}
	return "User"
}
