// Package chat relays a single user message to a hosted chat-completion API.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/angelmondragon/collectibles-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
)

const (
	temperature = 0.7
	maxTokens   = 1024
	topP        = 1
	// maxMessageLen bounds what a caller can forward upstream.
	maxMessageLen = 4000
)

var ErrAPIKeyRequired = errors.New("chat api key is required")

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service answers one message at a time; no conversation state is kept.
type Service interface {
	Reply(ctx context.Context, message string) (string, error)
}

type service struct {
	client       completer
	model        string
	systemPrompt string
	logg         *logger.Logger
}

// NewService builds an OpenAI-compatible client pointed at the configured base URL.
func NewService(cfg config.ChatConfig, logg *logger.Logger) (Service, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrAPIKeyRequired
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return newService(openai.NewClientWithConfig(clientCfg), cfg, logg)
}

func newService(client completer, cfg config.ChatConfig, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("chat client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		client:       client,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		logg:         logg,
	}, nil
}

func (s *service) Reply(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "message is required").WithDetails(map[string]any{"field": "message"})
	}
	if len(message) > maxMessageLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("message must be at most %d characters", maxMessageLen)).
			WithDetails(map[string]any{"field": "message"})
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if s.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s.systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        topP,
	})
	if err != nil {
		s.logg.WarnErr(ctx, "chat completion failed", err)
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
