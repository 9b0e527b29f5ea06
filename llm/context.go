package llm

import (
	"clementus360/clinic-assistant/types"
)

// DefaultContextTokens bounds the prompt built from conversation history.
const DefaultContextTokens = 6000

// EstimateTokens is a rough count at about four characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// TrimHistory drops the oldest messages until the chat prompt for message
// fits in maxTokens. The returned slice shares the tail of history.
func TrimHistory(history []types.Message, message string, maxTokens int) []types.Message {
	trimmed := history
	for len(trimmed) > 0 && EstimateTokens(ChatSystemPrompt+BuildChatPrompt(trimmed, message)) > maxTokens {
		trimmed = trimmed[1:]
	}
	return trimmed
}
