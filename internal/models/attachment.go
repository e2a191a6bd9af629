package models

// Attachment kinds
const (
	AttachmentImage = "image"
	AttachmentPDF   = "pdf"
)

// Attachment is a user-supplied file inlined as a base64 data URL for
// transmission to an AI provider. It is owned exclusively by the message that
// carries it.
//
// PreviewPath is a transient local handle for image previews. It is never
// serialized and must be released via the encoder once the attachment is
// removed or sent.
type Attachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	MimeType    string `json:"mimeType"`
	DataURL     string `json:"dataUrl"`
	Name        string `json:"name,omitempty"`
	PreviewPath string `json:"-"`
}

// Light returns a copy with the heavy payload stripped. Persisted history
// keeps attachment metadata only, so a single session cannot blow through
// the storage quota.
func (a Attachment) Light() Attachment {
	a.DataURL = ""
	a.PreviewPath = ""
	return a
}
