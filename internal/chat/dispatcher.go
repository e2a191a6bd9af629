package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/pkg/logger"
)

// Dispatcher state machine
type State int

const (
	StateIdle State = iota
	StateSending
)

var (
	// ErrEmptyInput is returned when neither content nor attachments are
	// present.
	ErrEmptyInput = errors.New("nothing to send")
	// ErrBusy is returned when a request is already in flight.
	ErrBusy = errors.New("a request is already in flight")
)

// User-facing failure messages rendered into the transcript.
const (
	MsgNetworkError  = "Network error. Please check your connection and try again."
	MsgNoResponse    = "No response received from the AI service"
	MsgBadResponse   = "Invalid response format from AI service"
	MsgGenericError  = "Sorry, I encountered an error. Please try again."
	MsgServiceFailed = "The AI service returned an error. Please try again."
)

// Dispatcher turns user input into a backend request and appends the result
// to the transcript. At most one request is in flight at a time; the state
// machine enforces this regardless of what triggers the send.
type Dispatcher struct {
	mu        sync.Mutex
	state     State
	messages  []models.Message
	transport Transport
	onSave    func([]models.Message)
	timeout   time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. onSave may be nil; it is invoked with
// the full updated transcript after every completed send, success or failure.
func NewDispatcher(transport Transport, onSave func([]models.Message), timeout time.Duration, log *logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Dispatcher{
		transport: transport,
		onSave:    onSave,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
	}
}

// Messages returns a copy of the transcript.
func (d *Dispatcher) Messages() []models.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Message, len(d.messages))
	copy(out, d.messages)
	return out
}

// Busy reports whether a send is in flight.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == StateSending
}

// SendMessage appends a user message, issues exactly one network call with
// the conversation so far, and appends the assistant's reply. Failures are
// classified and rendered into the transcript as assistant messages rather
// than surfaced to the caller, so the conversation never shows a raw error.
//
// Returns ErrEmptyInput or ErrBusy without mutating any state; otherwise nil.
func (d *Dispatcher) SendMessage(ctx context.Context, content string, attachments []models.Attachment) error {
	d.mu.Lock()
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		d.mu.Unlock()
		return ErrEmptyInput
	}
	if d.state == StateSending {
		d.mu.Unlock()
		return ErrBusy
	}
	d.state = StateSending

	userMsg := models.Message{
		ID:          strconv.FormatInt(d.now().UnixMilli(), 10),
		Content:     content,
		Role:        models.RoleUser,
		Timestamp:   d.now(),
		Attachments: attachments,
	}
	d.messages = append(d.messages, userMsg)
	conversation := make([]models.Message, len(d.messages))
	copy(conversation, d.messages)
	d.mu.Unlock()

	req := buildRequest(conversation, userMsg)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.transport.Send(ctx, req)
	reply, ok := replyFor(resp, err)
	if !ok {
		d.log.LogError(err, "Chat send failed", "kind", string(KindOf(err)))
	}

	assistantMsg := models.Message{
		ID:        strconv.FormatInt(d.now().UnixMilli()+1, 10),
		Content:   reply,
		Role:      models.RoleAssistant,
		Timestamp: d.now(),
	}

	d.mu.Lock()
	d.messages = append(d.messages, assistantMsg)
	updated := make([]models.Message, len(d.messages))
	copy(updated, d.messages)
	d.state = StateIdle
	d.mu.Unlock()

	if d.onSave != nil && len(updated) > 0 {
		d.onSave(updated)
	}
	return nil
}

// ClearMessages saves the current transcript when non-empty, then empties it.
func (d *Dispatcher) ClearMessages() {
	d.mu.Lock()
	saved := d.messages
	d.messages = nil
	d.mu.Unlock()

	if len(saved) > 0 && d.onSave != nil {
		d.onSave(saved)
	}
}

// LoadMessages replaces the transcript with a previously saved conversation.
func (d *Dispatcher) LoadMessages(msgs []models.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = make([]models.Message, len(msgs))
	copy(d.messages, msgs)
}

// buildRequest maps the transcript to {role, content} pairs. Only the newest
// user message's attachments ride along.
func buildRequest(conversation []models.Message, userMsg models.Message) models.ChatRequest {
	req := models.ChatRequest{
		Messages:    make([]models.ChatTurn, len(conversation)),
		Attachments: []models.AttachmentPayload{},
	}
	for i, m := range conversation {
		req.Messages[i] = models.ChatTurn{Role: m.Role, Content: m.Content}
	}
	for _, a := range userMsg.Attachments {
		req.Attachments = append(req.Attachments, models.AttachmentPayload{
			MimeType: a.MimeType,
			Data:     a.DataURL,
			Name:     a.Name,
			Type:     a.Type,
		})
	}
	return req
}

// replyFor maps a transport result to the assistant text that goes into the
// transcript. ok is false when the content is a failure message.
func replyFor(resp models.ChatResponse, err error) (string, bool) {
	if err != nil {
		switch KindOf(err) {
		case KindNetwork, KindTimeout:
			return MsgNetworkError, false
		case KindBadResponse:
			return MsgBadResponse, false
		case KindRemote:
			return MsgServiceFailed, false
		default:
			return MsgGenericError, false
		}
	}
	if resp.Message != "" {
		return resp.Message, true
	}
	if resp.Error != "" {
		return resp.Error, false
	}
	return MsgNoResponse, false
}
