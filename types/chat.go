package types

import (
	"time"
)

type Message struct {
	ID        string    `json:"id,omitempty" yaml:"id"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	UserID    string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Content   string    `json:"content" yaml:"content"`
	IsAI      bool      `json:"is_ai" yaml:"is_ai"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type ChatResponse struct {
	Success      bool     `json:"success"`
	UserMessage  *Message `json:"user_message,omitempty"`
	AIResponse   *Message `json:"ai_response,omitempty"`
	Fallback     bool     `json:"fallback,omitempty"` // AI reply is the fixed apology text
	ErrorMessage string   `json:"error,omitempty"`    // only set on failure
	SessionID    string   `json:"session_id,omitempty"`
}

type GetMessagesResponse struct {
	Success  bool      `json:"success"`
	Messages []Message `json:"messages"`
}
