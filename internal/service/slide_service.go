package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/internal/providers"
	"matscigpt/backend/pkg/logger"
)

// Slide generation parameters
const (
	slideTemperature = 0.7
	slideMaxTokens   = 2000
)

// ErrPromptRequired is returned when the slide prompt is empty.
var ErrPromptRequired = fmt.Errorf("prompt is required")

// SlideService turns a free-text topic into a structured slide deck. The
// model is asked for strict JSON; anything unparsable falls back to a
// hard-coded deck so the endpoint always produces usable slides.
type SlideService struct {
	gemini providers.Provider
	openAI providers.Provider
	cache  DeckCache
	log    *logger.Logger
}

// NewSlideService creates a slide service. cache may be nil.
func NewSlideService(gemini, openAI providers.Provider, cache DeckCache, log *logger.Logger) *SlideService {
	return &SlideService{gemini: gemini, openAI: openAI, cache: cache, log: log}
}

// GenerateDeck produces 8-10 slides for the given topic.
func (s *SlideService) GenerateDeck(ctx context.Context, prompt string) ([]models.Slide, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrPromptRequired
	}

	if s.cache != nil {
		if slides, ok := s.cache.Get(ctx, prompt); ok {
			return slides, nil
		}
	}

	p := s.gemini
	if !p.Available() {
		p = s.openAI
	}

	comp, err := p.Complete(ctx, providers.Request{
		System:      SystemPrompt,
		Turns:       []models.ChatTurn{{Role: models.RoleUser, Content: slidePrompt(prompt)}},
		Temperature: slideTemperature,
		MaxTokens:   slideMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	slides := ParseDeck(comp.Text, prompt)
	if s.log != nil {
		s.log.Info("slide deck generated", "provider", p.Name(), "slides", len(slides))
	}

	if s.cache != nil {
		s.cache.Set(ctx, prompt, slides)
	}
	return slides, nil
}

// ParseDeck extracts a slide deck from raw model output. Markdown code
// fences are stripped before parsing; a parse failure yields the fallback
// deck and an empty deck yields a single summary slide.
func ParseDeck(raw, prompt string) []models.Slide {
	text := extractJSON(raw)

	var parsed struct {
		Slides []models.Slide `json:"slides"`
	}
	slides := []models.Slide(nil)
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		slides = parsed.Slides
	} else {
		slides = FallbackDeck(prompt)
	}

	if len(slides) == 0 {
		title := prompt
		if runes := []rune(title); len(runes) > 50 {
			title = string(runes[:50])
		}
		slides = []models.Slide{{
			Title:   title,
			Content: "This presentation covers: " + prompt,
			Bullets: []string{
				"Introduction to the topic",
				"Key concepts and ideas",
				"Practical applications",
				"Conclusion and next steps",
			},
		}}
	}
	return slides
}

// extractJSON strips markdown code fences from model output.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "```json") {
		parts := strings.SplitN(text, "```json", 2)
		text = strings.SplitN(parts[1], "```", 2)[0]
	} else if strings.Contains(text, "```") {
		segments := strings.Split(text, "```")
		if len(segments) >= 2 {
			text = segments[1]
		}
	}
	return strings.TrimSpace(text)
}

// FallbackDeck is the basic deck used when the model output cannot be
// parsed as JSON.
func FallbackDeck(prompt string) []models.Slide {
	return []models.Slide{
		{
			Title:   "Introduction",
			Content: "Overview of " + prompt,
			Bullets: []string{"Welcome to this presentation", "Key topics to cover", "Objectives and goals"},
		},
		{
			Title:   "Main Content",
			Content: "Detailed information about " + prompt,
			Bullets: []string{"Key point 1", "Key point 2", "Key point 3"},
		},
		{
			Title:   "Conclusion",
			Content: "Summary and next steps",
			Bullets: []string{"Key takeaways", "Action items", "Thank you"},
		},
	}
}

// ErrorDeck is the deck returned when slide generation fails upstream.
func ErrorDeck() []models.Slide {
	return []models.Slide{{
		Title:   "Error",
		Content: "Failed to generate presentation content. Please try again.",
		Bullets: []string{"Check your prompt", "Try a different topic", "Contact support if issue persists"},
	}}
}
