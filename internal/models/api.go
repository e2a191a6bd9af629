package models

// Wire types for the chat and slide endpoints. The chat endpoint always
// answers HTTP 200; upstream failures are absorbed into a conversational
// Message so the client UI never has to render a raw error.

// ChatTurn is a single {role, content} pair as sent over the wire.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AttachmentPayload is the wire form of an attachment: base64 data URL plus
// metadata.
type AttachmentPayload struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type"`
}

// IsPDF reports whether the payload is a PDF document.
func (p AttachmentPayload) IsPDF() bool {
	return p.Type == AttachmentPDF || p.MimeType == "application/pdf"
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Messages    []ChatTurn          `json:"messages"`
	Attachments []AttachmentPayload `json:"attachments,omitempty"`
}

// HasPDF reports whether any attachment in the request is a PDF.
func (r ChatRequest) HasPDF() bool {
	for _, a := range r.Attachments {
		if a.IsPDF() {
			return true
		}
	}
	return false
}

// ChatResponse is the body of a chat completion response.
type ChatResponse struct {
	Message string         `json:"message"`
	Usage   map[string]any `json:"usage,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Slide is one slide of a generated deck.
type Slide struct {
	Title   string   `json:"title"`
	Content string   `json:"content,omitempty"`
	Bullets []string `json:"bullets,omitempty"`
}

// SlideRequest is the body of POST /api/v1/slides.
type SlideRequest struct {
	Prompt string `json:"prompt"`
}

// SlideResponse is the body of a slide generation response.
type SlideResponse struct {
	Slides []Slide `json:"slides"`
	Error  string  `json:"error,omitempty"`
}
