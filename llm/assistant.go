package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/types"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

const emptyPromptReply = "I'd be happy to help. Could you tell me a little more about what you'd like to know?"

// Assistant answers chat messages with a Client. It satisfies
// conversation.Generator.
type Assistant struct {
	client        Client
	system        string
	history       []types.Message
	contextTokens int
}

func NewAssistant(client Client) *Assistant {
	return &Assistant{
		client:        client,
		system:        ChatSystemPrompt,
		contextTokens: DefaultContextTokens,
	}
}

// WithHistory returns a copy of the assistant that includes the given prior
// messages in every prompt, trimmed oldest first to fit the context budget.
func (a *Assistant) WithHistory(history []types.Message) *Assistant {
	clone := *a
	clone.history = history
	return &clone
}

func (a *Assistant) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return emptyPromptReply, nil
	}

	history := TrimHistory(a.history, prompt, a.contextTokens)
	start := time.Now()
	reply, err := a.client.Complete(ctx, a.system, BuildChatPrompt(history, prompt))

	entry := config.Logger.WithFields(logrus.Fields{
		"provider": a.client.Provider(),
		"model":    a.client.Model(),
		"history":  len(history),
		"duration": time.Since(start).Round(time.Millisecond),
	})
	if err != nil {
		entry.Warn("Completion failed: ", err)
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		entry.Warn("Completion was empty")
		return "", ErrEmptyResponse
	}
	entry.Debug("Completion received")
	return reply, nil
}
