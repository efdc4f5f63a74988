// Package assistant answers NTU questions from campus documents, through a
// file-search assistant over uploaded files or a chat-completion model
// grounded on chunks retrieved by keyword.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ntugo/ntugo/internal/provider/resilience"
)

// ProviderName identifies the model API in the provider registry.
const ProviderName = "openai"

// Defaults for chat requests.
const (
	DefaultModel       = openai.GPT4oMini
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 45 * time.Second
	MaxChunks          = 5
)

// Answer methods.
const (
	MethodChat       = "chat"
	MethodAssistants = "assistants"
)

var (
	ErrNotConfigured = errors.New("AI API key not configured")
	ErrEmptyMessage  = errors.New("message is required")
	ErrRateLimited   = errors.New("AI provider rate limit exceeded")
	ErrUpstream      = errors.New("AI provider request failed")
)

// Turn is one earlier message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Question is a user message with the conversation so far.
type Question struct {
	Message string
	History []Turn
}

// Answer is the model's reply.
type Answer struct {
	Response   string `json:"response"`
	UsedChunks int    `json:"usedChunks"`
	UsedFiles  int    `json:"usedFiles"`
	Method     string `json:"method"`
}

// Config holds configuration for the assistant.
type Config struct {
	APIKey string

	// Model defaults to DefaultModel.
	Model string

	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string

	// HTTPClient defaults to a resilience client with DefaultTimeout.
	HTTPClient *resilience.Client

	Documents DocumentStore

	// RunPollInterval and RunTimeout bound the wait for a file-search run
	// (defaults: DefaultRunPollInterval, DefaultRunTimeout).
	RunPollInterval time.Duration
	RunTimeout      time.Duration

	Logger zerolog.Logger
}

// Service answers questions.
type Service struct {
	client          *openai.Client
	model           string
	documents       DocumentStore
	runPollInterval time.Duration
	runTimeout      time.Duration
	logger          zerolog.Logger
}

// NewService creates an assistant. Without an API key every question fails
// with ErrNotConfigured.
func NewService(cfg Config) *Service {
	s := &Service{
		model:           cfg.Model,
		documents:       cfg.Documents,
		runPollInterval: cfg.RunPollInterval,
		runTimeout:      cfg.RunTimeout,
		logger:          cfg.Logger,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.runPollInterval <= 0 {
		s.runPollInterval = DefaultRunPollInterval
	}
	if s.runTimeout <= 0 {
		s.runTimeout = DefaultRunTimeout
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return s
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = DefaultTimeout
		httpClient = resilience.NewClient(clientCfg)
	}

	oaCfg := openai.DefaultConfig(apiKey)
	oaCfg.HTTPClient = httpClient
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	s.client = openai.NewClientWithConfig(oaCfg)
	return s
}

// Configured reports whether an API key was provided.
func (s *Service) Configured() bool {
	return s.client != nil
}

// Ask answers q. When uploaded document files exist the question goes to a
// file-search assistant first; any failure there falls back to a chat
// completion over the retrieved chunks.
func (s *Service) Ask(ctx context.Context, q Question) (*Answer, error) {
	if s.client == nil {
		return nil, ErrNotConfigured
	}
	message := strings.TrimSpace(q.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	fileIDs := s.fileIDs(ctx)
	if len(fileIDs) > 0 {
		reply, err := s.askWithFiles(ctx, message, fileIDs)
		if err == nil {
			if strings.TrimSpace(reply) == "" {
				reply = fallbackReply
			}
			s.logger.Debug().Int("used_files", len(fileIDs)).Msg("ai answer generated from files")
			return &Answer{Response: reply, UsedFiles: len(fileIDs), Method: MethodAssistants}, nil
		}
		if ctx.Err() != nil {
			return nil, s.classify(err)
		}
		s.logger.Warn().Err(err).Int("used_files", len(fileIDs)).Msg("file search failed, falling back to chat")
	}

	chunks := s.retrieve(ctx, message)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    buildMessages(message, q.History, chunks),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	})
	if err != nil {
		return nil, s.classify(err)
	}

	reply := ""
	if len(resp.Choices) > 0 {
		reply = resp.Choices[0].Message.Content
	}
	if strings.TrimSpace(reply) == "" {
		reply = fallbackReply
	}

	s.logger.Debug().
		Int("used_chunks", len(chunks)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("ai answer generated")

	return &Answer{Response: reply, UsedChunks: len(chunks), UsedFiles: len(fileIDs), Method: MethodChat}, nil
}

// fileIDs lists the uploaded document files. Failures degrade to none.
func (s *Service) fileIDs(ctx context.Context) []string {
	if s.documents == nil {
		return nil
	}
	ids, err := s.documents.FileIDs(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("document file lookup failed")
		return nil
	}
	return ids
}

// retrieve looks up context chunks. Retrieval failures degrade to no context.
func (s *Service) retrieve(ctx context.Context, message string) []string {
	if s.documents == nil {
		return nil
	}
	chunks, err := s.documents.SearchChunks(ctx, message, MaxChunks)
	if err != nil {
		s.logger.Warn().Err(err).Msg("document retrieval failed")
		return nil
	}
	return chunks
}

func (s *Service) classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	s.logger.Error().Err(err).Int("status", status).Msg("ai provider request failed")

	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
