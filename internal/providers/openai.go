package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"matscigpt/backend/internal/models"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI is the general-purpose chat provider. It accepts inline images as
// image_url parts but has no inline document support, so PDF requests are
// never routed here.
type OpenAI struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates an OpenAI adapter. An empty key leaves the provider
// unavailable rather than failing.
func NewOpenAI(apiKey, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4o"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultOpenAIBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the API endpoint (used in tests).
func (p *OpenAI) SetBaseURL(u string) { p.baseURL = u }

// Name returns the provider name.
func (p *OpenAI) Name() string { return "openai" }

// Available reports whether an API key is configured.
func (p *OpenAI) Available() bool { return p.apiKey != "" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIImagePart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete performs one chat completion call.
func (p *OpenAI) Complete(ctx context.Context, req Request) (*Completion, error) {
	if !p.Available() {
		return nil, &Error{Provider: p.Name(), Kind: KindUnavailable, Message: "API key not configured"}
	}

	messages := []openAIMessage{
		{Role: "system", Content: req.System},
	}
	for i, turn := range req.Turns {
		content := any(turn.Content)
		// Inline image attachments ride on the final user turn
		if i == len(req.Turns)-1 && turn.Role == models.RoleUser && len(req.Attachments) > 0 {
			parts := []openAIImagePart{{Type: "text", Text: turn.Content}}
			for _, a := range req.Attachments {
				if a.IsPDF() {
					continue
				}
				part := openAIImagePart{Type: "image_url"}
				part.ImageURL = &struct {
					URL string `json:"url"`
				}{URL: a.Data}
				parts = append(parts, part)
			}
			content = parts
		}
		messages = append(messages, openAIMessage{Role: turn.Role, Content: content})
	}

	requestBody := openAIRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Provider: p.Name(),
			Kind:     kindFromStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  string(body),
		}
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	if openAIResp.Error != nil {
		return nil, &Error{Provider: p.Name(), Kind: KindUnknown, Message: openAIResp.Error.Message}
	}

	if len(openAIResp.Choices) == 0 {
		return nil, errors.New("no response generated")
	}

	return &Completion{
		Text:  openAIResp.Choices[0].Message.Content,
		Usage: openAIResp.Usage,
	}, nil
}
