package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/timmy/capvis/internal/config"
	"github.com/timmy/capvis/internal/domain"
	"github.com/timmy/capvis/internal/prompts"
)

// OllamaCaptioner talks to a local Ollama server through its native API.
type OllamaCaptioner struct {
	client      *api.Client
	model       string
	timeout     time.Duration
	temperature float64
	numPredict  int
}

// NewOllamaCaptioner creates a captioner bound to the configured Ollama
// server.
func NewOllamaCaptioner(cfg *config.VLMConfig) (*OllamaCaptioner, error) {
	rawURL := cfg.BaseURL
	if rawURL == "" {
		rawURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL %s: %w", rawURL, err)
	}

	// Drop any path component so a configured /api/... URL still works.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &OllamaCaptioner{
		client:      api.NewClient(baseURL, http.DefaultClient),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		temperature: cfg.Temperature,
		numPredict:  cfg.NumPredict,
	}, nil
}

// Model returns the model name being used.
func (s *OllamaCaptioner) Model() string {
	return s.model
}

// Probe verifies the server is running and the configured model is pulled.
func (s *OllamaCaptioner) Probe(ctx context.Context) error {
	list, err := s.client.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: cannot connect to ollama (start with: ollama serve): %v",
			domain.ErrServiceUnavailable, err)
	}

	for _, m := range list.Models {
		if strings.Contains(m.Name, s.model) || strings.Contains(m.Model, s.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: model %s not found (pull with: ollama pull %s)",
		domain.ErrModel, s.model, s.model)
}

// Describe sends the image to Ollama's generate endpoint and parses the
// response into a Caption.
func (s *OllamaCaptioner) Describe(ctx context.Context, imagePath string) (*domain.Caption, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  s.model,
		Prompt: prompts.CaptionSystemPrompt + "\n\n" + prompts.CaptionUserPrompt,
		Images: []api.ImageData{api.ImageData(imageData)},
		Stream: &stream,
		Options: map[string]any{
			"temperature": s.temperature,
			"num_predict": s.numPredict,
		},
	}

	var responseText string
	err = s.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		responseText += resp.Response
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: ollama returned %d: %s",
				domain.ErrModel, statusErr.StatusCode, statusErr.ErrorMessage)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	if responseText == "" {
		return nil, fmt.Errorf("%w: empty response from ollama", domain.ErrModel)
	}

	return parseCaption(responseText), nil
}
