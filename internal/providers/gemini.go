package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"matscigpt/backend/internal/models"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini is the multimodal provider. It takes the whole conversation as one
// flattened role-tagged text block plus inline_data parts, and is the only
// provider that can parse PDF documents inline.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGemini creates a Gemini adapter. An empty key leaves the provider
// unavailable rather than failing.
func NewGemini(apiKey, model string, timeout time.Duration) *Gemini {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gemini{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the API endpoint (used in tests).
func (p *Gemini) SetBaseURL(u string) { p.baseURL = u }

// Name returns the provider name.
func (p *Gemini) Name() string { return "gemini" }

// Available reports whether an API key is configured.
func (p *Gemini) Available() bool { return p.apiKey != "" }

type geminiPart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	} `json:"inline_data,omitempty"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata map[string]any `json:"usageMetadata"`
}

// FlattenTranscript renders the conversation as a role-tagged text block
// ending with an "Assistant:" cue, the shape Gemini receives.
func FlattenTranscript(system string, turns []models.ChatTurn) string {
	var b strings.Builder
	b.WriteString(system)
	for _, turn := range turns {
		b.WriteString("\n\n")
		if turn.Role == models.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(turn.Content)
	}
	b.WriteString("\n\nAssistant:")
	return b.String()
}

// stripDataURL removes a "data:<mime>;base64," prefix, leaving raw base64.
func stripDataURL(data string) string {
	if idx := strings.Index(data, ";base64,"); idx >= 0 && strings.HasPrefix(data, "data:") {
		return data[idx+len(";base64,"):]
	}
	return data
}

// Complete performs one generateContent call.
func (p *Gemini) Complete(ctx context.Context, req Request) (*Completion, error) {
	if !p.Available() {
		return nil, &Error{Provider: p.Name(), Kind: KindUnavailable, Message: "API key not configured"}
	}

	parts := []geminiPart{{Text: FlattenTranscript(req.System, req.Turns)}}
	for _, a := range req.Attachments {
		part := geminiPart{}
		part.InlineData = &struct {
			MimeType string `json:"mime_type"`
			Data     string `json:"data"`
		}{MimeType: a.MimeType, Data: stripDataURL(a.Data)}
		parts = append(parts, part)
	}

	requestBody := geminiRequest{}
	requestBody.Contents = []struct {
		Parts []geminiPart `json:"parts"`
	}{{Parts: parts}}
	requestBody.GenerationConfig.Temperature = req.Temperature
	requestBody.GenerationConfig.MaxOutputTokens = req.MaxTokens

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("invalid response format from Gemini API")
	}

	return &Completion{
		Text:  geminiResp.Candidates[0].Content.Parts[0].Text,
		Usage: geminiResp.UsageMetadata,
	}, nil
}
