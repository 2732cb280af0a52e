package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/Veraticus/erika/internal/conversation"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiConfig holds the Gemini API settings.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini implements Completer with the Gemini API.
type Gemini struct {
	models *genai.Models
	model  string
}

// NewGemini creates a Gemini completer.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{
		models: client.Models,
		model:  cfg.Model,
	}, nil
}

// Complete implements Completer.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, buildContents(req), buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	return resp.Text(), nil
}

func buildContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		contents = append(contents, genai.NewContentFromText(turn.Text, geminiRole(turn.Role)))
	}
	return append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	if req.System == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
	}
}

func geminiRole(role conversation.Role) genai.Role {
	if role == conversation.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}
