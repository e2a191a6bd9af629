package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/pkg/logger"
)

// fakeTransport records requests and returns a scripted response. When
// block is set, Send waits until release is closed, which lets tests hold a
// request in flight.
type fakeTransport struct {
	mu      sync.Mutex
	reqs    []models.ChatRequest
	resp    models.ChatResponse
	err     error
	release chan struct{}
}

func (f *fakeTransport) Send(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.resp, f.err
}

func (f *fakeTransport) requests() []models.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ChatRequest, len(f.reqs))
	copy(out, f.reqs)
	return out
}

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: "error", JSON: true})
}

func TestSendMessageEmptyInputIsNoOp(t *testing.T) {
	transport := &fakeTransport{}
	var saves int
	d := NewDispatcher(transport, func([]models.Message) { saves++ }, time.Second, testLog())

	err := d.SendMessage(context.Background(), "   ", nil)

	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, d.Messages())
	assert.Empty(t, transport.requests())
	assert.Zero(t, saves)
}

func TestSendMessageAttachmentsOnlyIsSent(t *testing.T) {
	transport := &fakeTransport{resp: models.ChatResponse{Message: "I see an image."}}
	d := NewDispatcher(transport, nil, time.Second, testLog())

	att := models.Attachment{ID: "a1", Type: models.AttachmentImage, MimeType: "image/png", DataURL: "data:image/png;base64,aGk="}
	err := d.SendMessage(context.Background(), "", []models.Attachment{att})

	require.NoError(t, err)
	reqs := transport.requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Attachments, 1)
	assert.Equal(t, "image/png", reqs[0].Attachments[0].MimeType)
}

func TestSendMessageSuccess(t *testing.T) {
	transport := &fakeTransport{resp: models.ChatResponse{Message: "Silicon has an indirect band gap of about 1.1 eV."}}
	var saved [][]models.Message
	d := NewDispatcher(transport, func(msgs []models.Message) { saved = append(saved, msgs) }, time.Second, testLog())

	err := d.SendMessage(context.Background(), "What is the band gap of silicon?", nil)
	require.NoError(t, err)

	msgs := d.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "What is the band gap of silicon?", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Silicon has an indirect band gap of about 1.1 eV.", msgs[1].Content)

	// Save callback fired exactly once with the full transcript
	require.Len(t, saved, 1)
	assert.Len(t, saved[0], 2)

	// The wire request carried the conversation as {role, content} pairs
	reqs := transport.requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 1)
	assert.Equal(t, models.ChatTurn{Role: "user", Content: "What is the band gap of silicon?"}, reqs[0].Messages[0])
	assert.NotNil(t, reqs[0].Attachments)
	assert.Empty(t, reqs[0].Attachments)
}

func TestSendMessageCarriesFullConversation(t *testing.T) {
	transport := &fakeTransport{resp: models.ChatResponse{Message: "reply"}}
	d := NewDispatcher(transport, nil, time.Second, testLog())

	require.NoError(t, d.SendMessage(context.Background(), "first", nil))
	require.NoError(t, d.SendMessage(context.Background(), "second", nil))

	reqs := transport.requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Messages, 1)
	// second request: user, assistant, user
	require.Len(t, reqs[1].Messages, 3)
	assert.Equal(t, "second", reqs[1].Messages[2].Content)
}

func TestSendMessageBusyGuard(t *testing.T) {
	transport := &fakeTransport{
		resp:    models.ChatResponse{Message: "done"},
		release: make(chan struct{}),
	}
	d := NewDispatcher(transport, nil, time.Minute, testLog())

	done := make(chan error, 1)
	go func() { done <- d.SendMessage(context.Background(), "slow one", nil) }()

	// Wait for the first send to be in flight
	require.Eventually(t, d.Busy, time.Second, time.Millisecond)

	err := d.SendMessage(context.Background(), "rejected", nil)
	assert.ErrorIs(t, err, ErrBusy)

	close(transport.release)
	require.NoError(t, <-done)

	msgs := d.Messages()
	require.Len(t, msgs, 2, "the rejected send must not have touched the transcript")
	assert.False(t, d.Busy())
}

func TestSendMessageFailureRendersAssistantMessage(t *testing.T) {
	transport := &fakeTransport{err: &Error{Kind: KindNetwork, Message: "connection refused"}}
	var saves int
	d := NewDispatcher(transport, func([]models.Message) { saves++ }, time.Second, testLog())

	err := d.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)

	msgs := d.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, MsgNetworkError, msgs[1].Content)
	assert.Equal(t, 1, saves, "failures still save the conversation")
	assert.False(t, d.Busy())
}

func TestSendMessageBadResponse(t *testing.T) {
	transport := &fakeTransport{resp: models.ChatResponse{}}
	d := NewDispatcher(transport, nil, time.Second, testLog())

	require.NoError(t, d.SendMessage(context.Background(), "hello", nil))

	msgs := d.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, MsgNoResponse, msgs[1].Content)
}

func TestSendMessageServerErrorField(t *testing.T) {
	transport := &fakeTransport{resp: models.ChatResponse{Error: "upstream exploded"}}
	d := NewDispatcher(transport, nil, time.Second, testLog())

	require.NoError(t, d.SendMessage(context.Background(), "hello", nil))

	msgs := d.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "upstream exploded", msgs[1].Content)
}

func TestClearMessagesSavesFirst(t *testing.T) {
	transport := &fakeTransport{resp: models.ChatResponse{Message: "reply"}}
	var saves int
	d := NewDispatcher(transport, func([]models.Message) { saves++ }, time.Second, testLog())

	require.NoError(t, d.SendMessage(context.Background(), "hello", nil))
	require.Equal(t, 1, saves)

	d.ClearMessages()
	assert.Equal(t, 2, saves)
	assert.Empty(t, d.Messages())

	// Clearing an empty transcript does not save again
	d.ClearMessages()
	assert.Equal(t, 2, saves)
}

func TestLoadMessages(t *testing.T) {
	d := NewDispatcher(&fakeTransport{}, nil, time.Second, testLog())

	msgs := []models.Message{
		{ID: "1", Role: models.RoleUser, Content: "hi", Timestamp: time.Now()},
		{ID: "2", Role: models.RoleAssistant, Content: "hello", Timestamp: time.Now()},
	}
	d.LoadMessages(msgs)

	assert.Equal(t, msgs, d.Messages())
}

func TestReplyForRemoteError(t *testing.T) {
	reply, ok := replyFor(models.ChatResponse{}, &Error{Kind: KindRemote, Status: 502})
	assert.False(t, ok)
	assert.Equal(t, MsgServiceFailed, reply)

	reply, ok = replyFor(models.ChatResponse{}, &Error{Kind: KindBadResponse})
	assert.False(t, ok)
	assert.Equal(t, MsgBadResponse, reply)
}
