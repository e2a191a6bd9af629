package service

import (
	"context"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/internal/providers"
	"matscigpt/backend/pkg/logger"
)

// User-facing fallback messages. Upstream failures are absorbed into these
// so the conversation never shows a raw error.
const (
	MsgMissingMessages = "It looks like your message didn't come through. Please try sending it again."
	MsgNotConfigured   = "The assistant is not fully configured yet. Please try again later."
	MsgDocUnavailable  = "Document analysis is not available right now. Please try again later."
	MsgDocCapacity     = "I'm handling a lot of document requests at the moment. Please try again in a few minutes."
	MsgOverloaded      = "I'm temporarily overloaded with requests. Please try again shortly."
	MsgKeyConfig       = "There's an API key configuration issue on my end. Please try again later."
	MsgGeneric         = "Sorry, I encountered an error processing your request. Please try again."
)

// Chat generation parameters (fixed, matching the upstream defaults)
const (
	chatTemperature = 0.7
	chatMaxTokens   = 1000
)

// ChatService routes a chat request to an upstream provider and turns
// whatever happens into a displayable response. It never returns an error:
// every failure path terminates in a readable chat message.
type ChatService struct {
	openAI providers.Provider
	gemini providers.Provider
	log    *logger.Logger
}

// NewChatService creates a chat service over the two provider adapters.
func NewChatService(openAI, gemini providers.Provider, log *logger.Logger) *ChatService {
	return &ChatService{openAI: openAI, gemini: gemini, log: log}
}

// RouteOrder is the provider routing decision table, keyed by
// (hasPDF, openAIAvailable, geminiAvailable). A third "openai" entry is a
// conditional retry: it is attempted only when the preceding gemini attempt
// was rate-limited.
func RouteOrder(hasPDF, openAIAvailable, geminiAvailable bool) []string {
	switch {
	case hasPDF && geminiAvailable:
		// Only gemini parses inline documents; single attempt
		return []string{"gemini"}
	case hasPDF:
		return nil
	case openAIAvailable && geminiAvailable:
		return []string{"openai", "gemini", "openai"}
	case openAIAvailable:
		return []string{"openai"}
	case geminiAvailable:
		return []string{"gemini"}
	default:
		return nil
	}
}

func (s *ChatService) provider(name string) providers.Provider {
	if name == "openai" {
		return s.openAI
	}
	return s.gemini
}

// Complete handles one chat request end to end. The response is always
// well-formed; the Error field carries diagnostic detail when the Message is
// an apology rather than a model answer.
func (s *ChatService) Complete(ctx context.Context, req models.ChatRequest) models.ChatResponse {
	if len(req.Messages) == 0 {
		return models.ChatResponse{Message: MsgMissingMessages, Error: "messages array is required"}
	}

	hasPDF := req.HasPDF()
	order := RouteOrder(hasPDF, s.openAI.Available(), s.gemini.Available())
	if len(order) == 0 {
		if hasPDF {
			return models.ChatResponse{Message: MsgDocUnavailable, Error: "no document-capable provider configured"}
		}
		return models.ChatResponse{Message: MsgNotConfigured, Error: "no provider configured"}
	}

	preq := providers.Request{
		System:      SystemPrompt,
		Turns:       req.Messages,
		Attachments: req.Attachments,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	}

	var lastErr error
	for i, name := range order {
		// The trailing openai entry is the one documented retry: taken
		// only when gemini just rate-limited.
		if i == 2 && !providers.IsRateLimited(lastErr) {
			break
		}

		p := s.provider(name)
		comp, err := p.Complete(ctx, preq)
		if err == nil {
			return models.ChatResponse{Message: comp.Text, Usage: comp.Usage}
		}

		s.log.WithProvider(p.Name()).LogError(err, "provider call failed",
			"attempt", i+1,
			"has_pdf", hasPDF,
		)
		lastErr = err
	}

	// All attempts failed; pick the friendliest explanation
	if hasPDF && providers.IsRateLimited(lastErr) {
		return models.ChatResponse{Message: MsgDocCapacity, Error: lastErr.Error()}
	}
	if providers.IsRateLimited(lastErr) {
		return models.ChatResponse{Message: MsgOverloaded, Error: lastErr.Error()}
	}
	if providers.IsUnauthorized(lastErr) {
		return models.ChatResponse{Message: MsgKeyConfig, Error: lastErr.Error()}
	}
	return models.ChatResponse{Message: MsgGeneric, Error: lastErr.Error()}
}
