package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"counselgo/internal/config"
	"counselgo/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Generator produces the scripted client's next reply for a conversation.
type Generator interface {
	Reply(ctx context.Context, personaType string, history []*models.Message) (string, error)
}

type personaService struct {
	chatModel model.BaseChatModel
}

// NewPersonaService builds a Generator backed by the configured provider.
func NewPersonaService(ctx context.Context, provider string, cfg *config.Config) (Generator, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api key", provider)
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 1000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}

	return &personaService{chatModel: chatModel}, nil
}

// Reply generates the persona's next turn from the stored conversation.
// The latest user message is expected to be the last history entry.
func (s *personaService) Reply(ctx context.Context, personaType string, history []*models.Message) (string, error) {
	persona, err := LookupPersona(personaType)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", errors.New("history cannot be empty")
	}

	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(persona.SystemPrompt))
	for _, msg := range history {
		switch msg.SenderType {
		case models.SenderUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case models.SenderAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}

	resp, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate persona reply: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return "", errors.New("empty persona reply")
	}
	return resp.Content, nil
}
