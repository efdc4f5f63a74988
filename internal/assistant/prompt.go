package assistant

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `你是一個專門回答台灣大學（NTU）相關問題的 AI 助手。你的職責是：

1. 只回答與台灣大學（NTU）相關的問題
2. 基於提供的資料庫文檔來回答問題
3. 如果問題與台大無關，請禮貌地告知用戶你只能回答台大相關問題
4. 如果資料庫中沒有相關資訊，請誠實告知，不要編造答案
5. 回答要準確、清晰、有幫助
6. 使用繁體中文回答

請記住：你只能回答台大相關的問題，並且只能基於提供的資料來回答。`

const noContextNote = "\n\n注意：資料庫中沒有找到與此問題直接相關的文檔。請基於你對台大的了解回答，如果無法確定，請告知用戶資料庫中沒有相關資訊。"

// fallbackReply is returned when the model produces no text.
const fallbackReply = "抱歉，我無法生成回答。"

const (
	maxChunkRunes = 500
	maxHistory    = 10
)

// buildContext renders retrieved chunks into the system prompt suffix.
func buildContext(chunks []string) string {
	if len(chunks) == 0 {
		return noContextNote
	}

	var b strings.Builder
	b.WriteString("\n\n以下是相關的資料庫文檔內容：\n\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[文檔片段 %d]\n%s\n\n", i+1, truncateRunes(chunk, maxChunkRunes))
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// buildMessages assembles the chat request: system prompt with context, the
// most recent history, then the question.
func buildMessages(question string, history []Turn, chunks []string) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt + buildContext(chunks),
	}}

	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, turn := range history {
		switch turn.Role {
		case openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
		}
	}

	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})
}
