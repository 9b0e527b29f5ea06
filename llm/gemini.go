package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type geminiClient struct {
	client *genai.Client
	opts   Options
}

func newGeminiClient(ctx context.Context, opts Options) (*geminiClient, error) {
	opts = opts.withDefaults(defaultGeminiModel)

	clientConfig := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiClient{client: client, opts: opts}, nil
}

func (c *geminiClient) Provider() Provider { return Gemini }
func (c *geminiClient) Model() string      { return c.opts.Model }

func (c *geminiClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	generation := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.opts.Temperature)),
		MaxOutputTokens: int32(c.opts.MaxTokens),
	}
	if system != "" {
		generation.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.opts.Model, genai.Text(prompt), generation)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return extractGeminiText(result)
}

// extractGeminiText joins the text parts of the first candidate, skipping
// thought summaries.
func extractGeminiText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in gemini response")
	}
	candidate := result.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("no content in gemini candidate")
	}

	var out strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		out.WriteString(part.Text)
	}
	return out.String(), nil
}
