package models

import "github.com/ntugo/ntugo/internal/assistant"

// ChatInput is the body of POST /api/ai/chat.
type ChatInput struct {
	Message             string           `json:"message"`
	ConversationHistory []assistant.Turn `json:"conversationHistory"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Success    bool   `json:"success"`
	Response   string `json:"response"`
	UsedChunks int    `json:"usedChunks"`
	UsedFiles  int    `json:"usedFiles"`
	Method     string `json:"method"`
}
