// Package gemini implements domain.Completer on top of the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"supportbot/internal/domain"
)

// ErrEmptyResponse is returned when Gemini produces no text.
var ErrEmptyResponse = errors.New("gemini returned no text")

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client sends conversations to Gemini.
type Client struct {
	models generator
}

// Config configures the Gemini client.
type Config struct {
	APIKeyEnv string
	// APIKey takes precedence over APIKeyEnv when set.
	APIKey string
}

// NewClient creates a Gemini-backed completer.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{models: client.Models}, nil
}

func (c *Client) Name() string { return "gemini" }

// Complete maps the conversation onto Gemini contents: system messages become the
// system instruction and assistant turns use the "model" role.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	contents, system := toContents(req.Messages)
	if len(contents) == 0 {
		return "", errors.New("no conversation turns to send")
	}
	temp := float32(req.Temperature)
	config := &genai.GenerateContentConfig{Temperature: &temp}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := c.models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toContents(msgs []domain.Message) ([]*genai.Content, string) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}
