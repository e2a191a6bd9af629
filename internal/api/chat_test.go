package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/internal/providers"
	"matscigpt/backend/internal/service"
	"matscigpt/backend/pkg/logger"
)

// stubProvider answers every completion with a fixed result.
type stubProvider struct {
	name      string
	available bool
	text      string
	err       error
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Complete(ctx context.Context, req providers.Request) (*providers.Completion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.Completion{Text: s.text}, nil
}

func newTestEngine(openAI, gemini providers.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.Config{Level: "error", JSON: true})

	chatSvc := service.NewChatService(openAI, gemini, log)
	ctrl := NewChatController(chatSvc, nil, log)

	r := gin.New()
	ctrl.RegisterRoutesV1(r.Group("/api/v1"))
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatBandGapRoundTrip(t *testing.T) {
	r := newTestEngine(
		&stubProvider{name: "openai", available: true, text: "Silicon has an indirect band gap of about 1.1 eV."},
		&stubProvider{name: "gemini", available: true},
	)

	w := postJSON(r, "/api/v1/chat", `{"messages":[{"role":"user","content":"What is the band gap of silicon?"}],"attachments":[]}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Silicon has an indirect band gap of about 1.1 eV.", resp.Message)
	assert.Empty(t, resp.Error)
}

func TestChatEmptyMessagesStill200(t *testing.T) {
	r := newTestEngine(
		&stubProvider{name: "openai", available: true},
		&stubProvider{name: "gemini", available: true},
	)

	w := postJSON(r, "/api/v1/chat", `{"messages":[]}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, service.MsgMissingMessages, resp.Message)
	assert.NotEmpty(t, resp.Error)
}

func TestChatProviderFailureStill200(t *testing.T) {
	fail := &providers.Error{Provider: "openai", Kind: providers.KindUnavailable, Status: 500, Message: "down"}
	r := newTestEngine(
		&stubProvider{name: "openai", available: true, err: fail},
		&stubProvider{name: "gemini", available: false},
	)

	w := postJSON(r, "/api/v1/chat", `{"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, service.MsgGeneric, resp.Message)
	assert.NotEmpty(t, resp.Error)
}

func TestChatMalformedBody(t *testing.T) {
	r := newTestEngine(
		&stubProvider{name: "openai", available: true},
		&stubProvider{name: "gemini", available: true},
	)

	w := postJSON(r, "/api/v1/chat", `{"messages": not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatPDFCapacityMessage(t *testing.T) {
	limited := &providers.Error{Provider: "gemini", Kind: providers.KindRateLimited, Status: 429, Message: "quota"}
	r := newTestEngine(
		&stubProvider{name: "openai", available: true, text: "never reached"},
		&stubProvider{name: "gemini", available: true, err: limited},
	)

	body := `{"messages":[{"role":"user","content":"summarize"}],"attachments":[{"mimeType":"application/pdf","data":"data:application/pdf;base64,JVBERi0=","name":"paper.pdf","type":"pdf"}]}`
	w := postJSON(r, "/api/v1/chat", body)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, service.MsgDocCapacity, resp.Message)
}
