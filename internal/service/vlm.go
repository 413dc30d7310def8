package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/capvis/internal/config"
	"github.com/timmy/capvis/internal/domain"
	"github.com/timmy/capvis/internal/prompts"
)

// OpenAICaptioner talks to any OpenAI-compatible chat-completions endpoint
// that accepts image content, including Ollama's /v1 compatibility layer.
type OpenAICaptioner struct {
	client   *resty.Client
	model    string
	baseURL  string
	endpoint string
}

// NewOpenAICaptioner creates a captioner over the configured endpoint.
func NewOpenAICaptioner(cfg *config.VLMConfig) *OpenAICaptioner {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAICaptioner{
		client:   client,
		model:    cfg.Model,
		baseURL:  baseURL,
		endpoint: baseURL + "/chat/completions",
	}
}

// Model returns the model name being used.
func (s *OpenAICaptioner) Model() string {
	return s.model
}

// OpenAI-compatible Chat Completion API request/response structures
type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type openAITextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIImageContent struct {
	Type     string         `json:"type"`
	ImageURL openAIImageURL `json:"image_url"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Probe checks that the endpoint answers its model listing route.
func (s *OpenAICaptioner) Probe(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get(s.baseURL + "/models")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("%w: models endpoint returned HTTP %d", domain.ErrModel, resp.StatusCode())
	}
	return nil
}

// Describe sends the image plus the captioning prompt and parses the
// response into a Caption.
func (s *OpenAICaptioner) Describe(ctx context.Context, imagePath string) (*domain.Caption, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}

	mimeType := getMIMEType(domain.ImageFormat(imagePath))
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))

	req := openAIRequest{
		Model: s.model,
		Messages: []openAIMessage{
			{
				Role:    "system",
				Content: prompts.CaptionSystemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					openAITextContent{
						Type: "text",
						Text: prompts.CaptionUserPrompt,
					},
					openAIImageContent{
						Type: "image_url",
						ImageURL: openAIImageURL{
							URL:    dataURL,
							Detail: "auto",
						},
					},
				},
			},
		},
		MaxTokens: 512,
	}

	var resp openAIResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)
	if err != nil {
		// Transport failures and client timeouts both mean the endpoint
		// was not reachable for this request.
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		} else if len(httpResp.Body()) > 0 {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrModel, errorMsg)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrModel, resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", domain.ErrModel)
	}

	return parseCaption(resp.Choices[0].Message.Content), nil
}

func getMIMEType(format string) string {
	switch format {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
