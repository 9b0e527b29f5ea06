package conversation

import (
	"context"

	"github.com/sirupsen/logrus"

	"clementus360/clinic-assistant/config"
	"clementus360/clinic-assistant/types"
)

// Conversation runs chat turns against a Store.
type Conversation struct {
	store     *Store
	generator Generator
	fallback  string
}

// NewConversation returns a Conversation that answers with generator and
// falls back to config.FallbackAIResponse when generation fails.
func NewConversation(store *Store, generator Generator) *Conversation {
	return &Conversation{
		store:     store,
		generator: generator,
		fallback:  config.FallbackAIResponse,
	}
}

// TurnResult holds the two messages a completed turn appended.
type TurnResult struct {
	UserMessage types.Message
	AIMessage   types.Message
	// Fallback is set when AIMessage carries the apology text because
	// generation failed with GenerationErr.
	Fallback      bool
	GenerationErr error
}

// Turn appends the user's text, asks the generator for a reply and appends
// the reply, or the fallback text if generation fails. The session is
// marked loading for the whole turn.
//
// If the user message cannot be stored nothing else is appended. Once it
// is stored the reply is always appended, even if ctx is cancelled while
// generating, so a session never ends on an unanswered user message.
func (c *Conversation) Turn(ctx context.Context, sessionID, text string) (TurnResult, error) {
	c.store.beginLoading(sessionID)
	defer c.store.endLoading(sessionID)

	userMsg, err := c.store.AppendMessage(ctx, sessionID, text, false)
	if err != nil {
		return TurnResult{}, err
	}
	result := TurnResult{UserMessage: userMsg}

	reply, err := c.generator.Generate(ctx, text)
	if err != nil {
		config.Logger.WithFields(logrus.Fields{
			"user_id":    c.store.UserID(),
			"session_id": sessionID,
		}).Error("Failed to get AI response: ", err)
		reply = c.fallback
		result.Fallback = true
		result.GenerationErr = err
	}

	aiMsg, err := c.store.AppendMessage(context.WithoutCancel(ctx), sessionID, reply, true)
	if err != nil {
		return result, err
	}
	result.AIMessage = aiMsg
	return result, nil
}
