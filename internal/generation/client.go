package generation

import (
	"context"
	"fmt"
	"log"
	"strings"

	genai "google.golang.org/genai"
)

const (
	// ModelHigh is tried first when the caller qualifies for the high tier.
	ModelHigh = "gemini-3-pro-preview"
	// ModelLow handles everything else and the one-shot degradation retry.
	ModelLow = "gemini-3-flash-preview"
)

// modelInvoker is the raw model call. The real implementation wraps the
// genai client; tests substitute fakes to drive the fallback and parse
// paths.
type modelInvoker interface {
	Invoke(ctx context.Context, model string, req Request) (string, error)
}

// Client sends prompt-to-app generation requests to Gemini. A failed
// high-tier call falls back once to the low tier with identical arguments;
// credential rejections propagate immediately.
type Client struct {
	invoker modelInvoker
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return &Client{invoker: &geminiInvoker{cli: cli}}, nil
}

// Generate runs one generation round. The returned Result's Files mapping
// is a partial patch; merging it into project state is the caller's job.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	model := ModelLow
	if req.HighTier {
		model = ModelHigh
	}

	res, err := c.attempt(ctx, model, req)
	if err == nil {
		return res, nil
	}
	if isAuthError(err) {
		return Result{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if model == ModelLow {
		return Result{}, fmt.Errorf("generation failed (%s): %w", model, err)
	}

	// Degrade once to the low tier with identical arguments.
	log.Printf("generation: %s failed (%v), retrying on %s", model, err, ModelLow)
	res, err = c.attempt(ctx, ModelLow, req)
	if err != nil {
		if isAuthError(err) {
			return Result{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return Result{}, fmt.Errorf("generation failed (%s): %w", ModelLow, err)
	}
	return res, nil
}

func (c *Client) attempt(ctx context.Context, model string, req Request) (Result, error) {
	raw, err := c.invoker.Invoke(ctx, model, req)
	if err != nil {
		return Result{}, err
	}
	return parseResult(raw, req.Prompt)
}

func isAuthError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "API_KEY_INVALID")
}

// geminiInvoker is the production modelInvoker on top of the official
// genai client.
type geminiInvoker struct {
	cli *genai.Client
}

func (g *geminiInvoker) Invoke(ctx context.Context, model string, req Request) (string, error) {
	parts := make([]*genai.Part, 0, 5)
	for _, text := range buildTextParts(req) {
		parts = append(parts, &genai.Part{Text: text})
	}
	if req.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MimeType,
				Data:     req.Image.Data,
			},
		})
	}

	resp, err := g.cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Parts: parts}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
