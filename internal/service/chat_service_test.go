package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/internal/providers"
	"matscigpt/backend/pkg/logger"
)

// fakeProvider returns scripted results, one per call.
type fakeProvider struct {
	name      string
	available bool
	results   []fakeResult
	calls     int
}

type fakeResult struct {
	text string
	err  error
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Complete(ctx context.Context, req providers.Request) (*providers.Completion, error) {
	if f.calls >= len(f.results) {
		return nil, &providers.Error{Provider: f.name, Kind: providers.KindUnknown, Message: "unexpected call"}
	}
	r := f.results[f.calls]
	f.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &providers.Completion{Text: r.text, Usage: map[string]any{"total_tokens": float64(42)}}, nil
}

func rateLimited(name string) error {
	return &providers.Error{Provider: name, Kind: providers.KindRateLimited, Status: 429, Message: "quota exceeded"}
}

func serverError(name string) error {
	return &providers.Error{Provider: name, Kind: providers.KindUnavailable, Status: 500, Message: "internal"}
}

func keyRejected(name string) error {
	return &providers.Error{Provider: name, Kind: providers.KindUnauthorized, Status: 401, Message: "invalid api key"}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", JSON: true})
}

func userRequest(content string) models.ChatRequest {
	return models.ChatRequest{Messages: []models.ChatTurn{{Role: models.RoleUser, Content: content}}}
}

func pdfRequest(content string) models.ChatRequest {
	req := userRequest(content)
	req.Attachments = []models.AttachmentPayload{{
		MimeType: "application/pdf",
		Data:     "data:application/pdf;base64,JVBERi0=",
		Name:     "paper.pdf",
		Type:     models.AttachmentPDF,
	}}
	return req
}

func TestRouteOrder(t *testing.T) {
	tests := []struct {
		name               string
		hasPDF, oai, gem   bool
		want               []string
	}{
		{"pdf routes to gemini only", true, true, true, []string{"gemini"}},
		{"pdf without gemini has no route", true, true, false, nil},
		{"both providers", false, true, true, []string{"openai", "gemini", "openai"}},
		{"openai only", false, true, false, []string{"openai"}},
		{"gemini only", false, false, true, []string{"gemini"}},
		{"nothing configured", false, false, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RouteOrder(tt.hasPDF, tt.oai, tt.gem))
		})
	}
}

func TestCompleteEmptyMessages(t *testing.T) {
	openAI := &fakeProvider{name: "openai", available: true}
	gemini := &fakeProvider{name: "gemini", available: true}
	svc := NewChatService(openAI, gemini, testLogger())

	resp := svc.Complete(context.Background(), models.ChatRequest{})

	assert.Equal(t, MsgMissingMessages, resp.Message)
	assert.NotEmpty(t, resp.Error)
	assert.Zero(t, openAI.calls)
	assert.Zero(t, gemini.calls)
}

func TestCompleteNoProvidersConfigured(t *testing.T) {
	svc := NewChatService(
		&fakeProvider{name: "openai"},
		&fakeProvider{name: "gemini"},
		testLogger(),
	)

	resp := svc.Complete(context.Background(), userRequest("hello"))
	assert.Equal(t, MsgNotConfigured, resp.Message)
}

func TestCompleteOpenAISuccess(t *testing.T) {
	openAI := &fakeProvider{name: "openai", available: true, results: []fakeResult{{text: "Silicon has an indirect band gap of about 1.1 eV."}}}
	gemini := &fakeProvider{name: "gemini", available: true}
	svc := NewChatService(openAI, gemini, testLogger())

	resp := svc.Complete(context.Background(), userRequest("What is the band gap of silicon?"))

	assert.Equal(t, "Silicon has an indirect band gap of about 1.1 eV.", resp.Message)
	assert.Empty(t, resp.Error)
	assert.NotNil(t, resp.Usage)
	assert.Equal(t, 1, openAI.calls)
	assert.Zero(t, gemini.calls)
}

func TestCompleteFallsBackToGemini(t *testing.T) {
	openAI := &fakeProvider{name: "openai", available: true, results: []fakeResult{{err: serverError("openai")}}}
	gemini := &fakeProvider{name: "gemini", available: true, results: []fakeResult{{text: "from gemini"}}}
	svc := NewChatService(openAI, gemini, testLogger())

	resp := svc.Complete(context.Background(), userRequest("hello"))

	assert.Equal(t, "from gemini", resp.Message)
	assert.Equal(t, 1, openAI.calls)
	assert.Equal(t, 1, gemini.calls)
}

func TestCompleteRetriesOpenAIAfterGeminiRateLimit(t *testing.T) {
	openAI := &fakeProvider{name: "openai", available: true, results: []fakeResult{
		{err: serverError("openai")},
		{text: "second wind"},
	}}
	gemini := &fakeProvider{name: "gemini", available: true, results: []fakeResult{{err: rateLimited("gemini")}}}
	svc := NewChatService(openAI, gemini, testLogger())

	resp := svc.Complete(context.Background(), userRequest("hello"))

	assert.Equal(t, "second wind", resp.Message)
	assert.Equal(t, 2, openAI.calls)
	assert.Equal(t, 1, gemini.calls)
}

func TestCompleteNoRetryWhenGeminiNotRateLimited(t *testing.T) {
	openAI := &fakeProvider{name: "openai", available: true, results: []fakeResult{{err: serverError("openai")}}}
	gemini := &fakeProvider{name: "gemini", available: true, results: []fakeResult{{err: serverError("gemini")}}}
	svc := NewChatService(openAI, gemini, testLogger())

	resp := svc.Complete(context.Background(), userRequest("hello"))

	assert.Equal(t, MsgGeneric, resp.Message)
	assert.Equal(t, 1, openAI.calls)
	assert.Equal(t, 1, gemini.calls)
}

func TestCompleteOverloadedMessage(t *testing.T) {
	openAI := &fakeProvider{name: "openai", available: true, results: []fakeResult{
		{err: serverError("openai")},
		{err: rateLimited("openai")},
	}}
	gemini := &fakeProvider{name: "gemini", available: true, results: []fakeResult{{err: rateLimited("gemini")}}}
	svc := NewChatService(openAI, gemini, testLogger())

	resp := svc.Complete(context.Background(), userRequest("hello"))

	assert.Equal(t, MsgOverloaded, resp.Message)
	assert.NotEmpty(t, resp.Error)
}

func TestCompleteKeyRejectionMessage(t *testing.T) {
	openAI := &fakeProvider{name: "openai", available: true, results: []fakeResult{{err: keyRejected("openai")}}}
	gemini := &fakeProvider{name: "gemini", available: true, results: []fakeResult{{err: keyRejected("gemini")}}}
	svc := NewChatService(openAI, gemini, testLogger())

	resp := svc.Complete(context.Background(), userRequest("hello"))

	assert.Equal(t, MsgKeyConfig, resp.Message)
	assert.Contains(t, resp.Error, "invalid api key")
}

func TestCompletePDFRateLimitReturnsCapacityMessage(t *testing.T) {
	openAI := &fakeProvider{name: "openai", available: true}
	gemini := &fakeProvider{name: "gemini", available: true, results: []fakeResult{{err: rateLimited("gemini")}}}
	svc := NewChatService(openAI, gemini, testLogger())

	resp := svc.Complete(context.Background(), pdfRequest("summarize this paper"))

	assert.Equal(t, MsgDocCapacity, resp.Message)
	assert.Zero(t, openAI.calls, "PDF requests never touch openai")
	assert.Equal(t, 1, gemini.calls)
}

func TestCompletePDFWithoutGemini(t *testing.T) {
	openAI := &fakeProvider{name: "openai", available: true}
	gemini := &fakeProvider{name: "gemini"}
	svc := NewChatService(openAI, gemini, testLogger())

	resp := svc.Complete(context.Background(), pdfRequest("summarize this paper"))

	assert.Equal(t, MsgDocUnavailable, resp.Message)
	assert.Zero(t, openAI.calls)
}

func TestCompletePDFSingleAttempt(t *testing.T) {
	gemini := &fakeProvider{name: "gemini", available: true, results: []fakeResult{{err: serverError("gemini")}}}
	svc := NewChatService(&fakeProvider{name: "openai", available: true}, gemini, testLogger())

	resp := svc.Complete(context.Background(), pdfRequest("summarize"))

	require.Equal(t, 1, gemini.calls)
	assert.Equal(t, MsgGeneric, resp.Message)
}
