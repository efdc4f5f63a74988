package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the file-search run.
const (
	DefaultRunPollInterval = time.Second
	DefaultRunTimeout      = 30 * time.Second
)

const (
	assistantName       = "NTU AI 客服"
	fileSearchNote      = "\n\n請從上傳的PDF文檔中查找相關資訊來回答問題。"
	messageContentText  = "text"
	threadMessageWindow = 20
)

var errRunIncomplete = errors.New("assistant run did not complete")

// askWithFiles answers message through a file-search assistant over the
// uploaded campus documents. The assistant is deleted afterwards.
func (s *Service) askWithFiles(ctx context.Context, message string, fileIDs []string) (string, error) {
	instructions := systemPrompt + fileSearchNote
	name := assistantName
	created, err := s.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        s.model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
	})
	if err != nil {
		return "", fmt.Errorf("creating assistant: %w", err)
	}
	defer s.deleteAssistant(ctx, created.ID)

	attachments := make([]openai.ThreadAttachment, len(fileIDs))
	for i, id := range fileIDs {
		attachments[i] = openai.ThreadAttachment{
			FileID: id,
			Tools:  []openai.ThreadAttachmentTool{{Type: string(openai.AssistantToolTypeFileSearch)}},
		}
	}
	thread, err := s.client.CreateThread(ctx, openai.ThreadRequest{
		Messages: []openai.ThreadMessage{{
			Role:        openai.ThreadMessageRoleUser,
			Content:     message,
			Attachments: attachments,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}

	run, err := s.client.CreateRun(ctx, thread.ID, openai.RunRequest{AssistantID: created.ID})
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}

	run, err = s.waitForRun(ctx, thread.ID, run)
	if err != nil {
		return "", err
	}

	limit := threadMessageWindow
	order := "desc"
	messages, err := s.client.ListMessage(ctx, thread.ID, &limit, &order, nil, nil, &run.ID)
	if err != nil {
		return "", fmt.Errorf("listing thread messages: %w", err)
	}
	for _, m := range messages.Messages {
		if m.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		if len(m.Content) > 0 && m.Content[0].Type == messageContentText && m.Content[0].Text != nil {
			return m.Content[0].Text.Value, nil
		}
		break
	}
	return fallbackReply, nil
}

// waitForRun polls run until it leaves the queued and in-progress states or
// the run timeout passes.
func (s *Service) waitForRun(ctx context.Context, threadID string, run openai.Run) (openai.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	ticker := time.NewTicker(s.runPollInterval)
	defer ticker.Stop()

	for run.Status == openai.RunStatusQueued || run.Status == openai.RunStatusInProgress {
		select {
		case <-ctx.Done():
			return run, fmt.Errorf("%w: last status %s: %w", errRunIncomplete, run.Status, ctx.Err())
		case <-ticker.C:
		}

		next, err := s.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("retrieving run: %w", err)
		}
		run = next
	}

	if run.Status != openai.RunStatusCompleted {
		if run.LastError != nil {
			return run, fmt.Errorf("%w: %s: %s", errRunIncomplete, run.Status, run.LastError.Message)
		}
		return run, fmt.Errorf("%w: %s", errRunIncomplete, run.Status)
	}
	return run, nil
}

func (s *Service) deleteAssistant(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.client.DeleteAssistant(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("assistant_id", id).Msg("failed to delete assistant")
	}
}
