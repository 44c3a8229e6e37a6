package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

const narrativeSystemPrompt = "You are a video content analyst. Answer with the requested JSON block."

// ChatConfig configures an OpenAI-compatible chat endpoint.
type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// ChatConfigFromNarrative converts the narrative provider config section.
func ChatConfigFromNarrative(cfg config.NarrativeConfig) ChatConfig {
	return ChatConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     config.Duration(cfg.Timeout, 5*time.Minute),
	}
}

// ChatClient speaks the OpenAI chat completions protocol. It serves as the
// narrative provider and as the Generator behind synthesis.
type ChatClient struct {
	client *openai.Client
	cfg    ChatConfig
}

// NewChatClient creates a client. The API key is required.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "chat provider api key is not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	return &ChatClient{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// Name implements core.NarrativeCaller.
func (c *ChatClient) Name() core.ProviderName {
	return core.ProviderNarrative
}

// Call sends the rendered narrative prompt for ref and returns the raw
// answer text.
func (c *ChatClient) Call(ctx context.Context, ref string, opts core.CallOptions) (string, error) {
	prompt := opts.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("Analyze the video at %s.", ref)
	}
	return c.complete(ctx, core.GenerateRequest{
		Prompt:      prompt,
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Timeout:     c.cfg.Timeout,
	}, narrativeSystemPrompt)
}

// Generate implements core.Generator. Zero fields in req fall back to the
// client configuration.
func (c *ChatClient) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	if req.Model == "" {
		req.Model = c.cfg.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	if req.Timeout == 0 {
		req.Timeout = c.cfg.Timeout
	}
	text, err := c.complete(ctx, req, "")
	if err != nil {
		return "", Classify(core.ProviderNarrative, err)
	}
	return text, nil
}

func (c *ChatClient) complete(ctx context.Context, req core.GenerateRequest, system string) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", core.ErrMalformedResponse(core.ProviderNarrative, "completion has no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", core.ErrMalformedResponse(core.ProviderNarrative, "completion is empty")
	}
	return text, nil
}
