package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel = "gpt-4o"
	defaultTimeout     = 120 * time.Second
)

// OpenAIConfig configures the chat completions backend. When Endpoint is set
// the client talks to an Azure OpenAI resource and Model is the deployment name.
type OpenAIConfig struct {
	APIKey     string
	Endpoint   string
	APIVersion string
	Model      string
	BaseURL    string
	Timeout    time.Duration
}

// OpenAIClient implements Completer on top of go-openai.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	provider string
}

// NewOpenAI builds a Completer for OpenAI or, when cfg.Endpoint is set, Azure OpenAI.
// An empty model is accepted; callers detect it through Model().
func NewOpenAI(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	var clientCfg openai.ClientConfig
	provider := "openai"
	if cfg.Endpoint != "" {
		provider = "azure-openai"
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		// Deployment names are used as-is.
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: provider,
	}, nil
}

func (c *OpenAIClient) Model() string { return c.model }

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature(req.Temperature),
		Stop:        req.Stop,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: c.provider, Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Provider: c.provider, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{Provider: c.provider, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &Error{Provider: c.provider, Message: fmt.Sprintf("%v", err), Err: err}
}

// temperature maps a requested temperature onto the wire value. go-openai omits
// a zero temperature from the payload, which the API reads as its default of 1.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	if t > 2 {
		return 2
	}
	return float32(t)
}
