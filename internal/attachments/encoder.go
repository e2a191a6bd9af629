package attachments

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/pkg/logger"
)

// Size and count ceilings for a pending message.
const (
	MaxPerMessage = 3
	MaxImageBytes = 8 << 20
	MaxPDFBytes   = 15 << 20
)

// Per-file rejection reasons, reported through the notify callback.
var (
	ErrLimitReached    = errors.New("attachment limit reached (3 per message)")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file exceeds the size limit")
)

// File is one candidate attachment: a name, a MIME type and its raw bytes.
// MimeType may be empty, in which case it is inferred from the name's
// extension.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// ReadFile loads a file from disk into a File, inferring its MIME type.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// Limits are the encoder ceilings for one pending message.
type Limits struct {
	MaxPerMessage int
	MaxImageBytes int64
	MaxPDFBytes   int64
}

// DefaultLimits returns the standard ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxPerMessage: MaxPerMessage,
		MaxImageBytes: MaxImageBytes,
		MaxPDFBytes:   MaxPDFBytes,
	}
}

// Encoder validates candidate files and encodes accepted ones as base64
// data URLs, building the pending attachment list for the next message.
// Files are processed one at a time so a batch never holds more than one
// decoded payload in flight.
type Encoder struct {
	mu      sync.Mutex
	pending []models.Attachment
	limits  Limits
	notify  func(name string, reason error)
	log     *logger.Logger
}

// NewEncoder creates an encoder with the default limits. notify may be nil;
// when set it is called once per rejected file with the rejection reason.
func NewEncoder(notify func(name string, reason error), log *logger.Logger) *Encoder {
	return NewEncoderWithLimits(DefaultLimits(), notify, log)
}

// NewEncoderWithLimits creates an encoder with explicit ceilings.
func NewEncoderWithLimits(limits Limits, notify func(name string, reason error), log *logger.Logger) *Encoder {
	if log == nil {
		log = logger.GetGlobal()
	}
	if limits.MaxPerMessage <= 0 {
		limits.MaxPerMessage = MaxPerMessage
	}
	if limits.MaxImageBytes <= 0 {
		limits.MaxImageBytes = MaxImageBytes
	}
	if limits.MaxPDFBytes <= 0 {
		limits.MaxPDFBytes = MaxPDFBytes
	}
	return &Encoder{limits: limits, notify: notify, log: log}
}

// Add validates and encodes files of the given kind, appending accepted ones
// to the pending list. A batch larger than the remaining slots is truncated;
// files violating type or size are skipped individually, never failing the
// batch. Returns the attachments accepted from this call.
func (e *Encoder) Add(files []File, kind string) []models.Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := e.limits.MaxPerMessage - len(e.pending)
	if remaining <= 0 {
		for _, f := range files {
			e.reject(f.Name, ErrLimitReached)
		}
		return nil
	}
	if len(files) > remaining {
		for _, f := range files[remaining:] {
			e.reject(f.Name, ErrLimitReached)
		}
		files = files[:remaining]
	}

	var accepted []models.Attachment
	for _, f := range files {
		att, err := e.encode(f, kind)
		if err != nil {
			e.reject(f.Name, err)
			continue
		}
		e.pending = append(e.pending, att)
		accepted = append(accepted, att)
	}
	return accepted
}

// Pending returns a copy of the pending attachment list.
func (e *Encoder) Pending() []models.Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Attachment, len(e.pending))
	copy(out, e.pending)
	return out
}

// Remove drops a pending attachment by id and releases its preview handle.
func (e *Encoder) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, a := range e.pending {
		if a.ID == id {
			releasePreview(a)
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// Take returns the pending attachments and clears the list, releasing every
// preview handle. Called when the message carrying them is sent.
func (e *Encoder) Take() []models.Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.pending
	e.pending = nil
	for i, a := range out {
		releasePreview(a)
		out[i].PreviewPath = ""
	}
	return out
}

// Restore puts taken attachments back on the pending list, ahead of anything
// added since, for a send that was rejected after Take. Previews are not
// recreated; the payloads are intact.
func (e *Encoder) Restore(atts []models.Attachment) {
	if len(atts) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(atts, e.pending...)
}

// Clear drops all pending attachments and their previews.
func (e *Encoder) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.pending {
		releasePreview(a)
	}
	e.pending = nil
}

func (e *Encoder) encode(f File, kind string) (models.Attachment, error) {
	mimeType := f.MimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(f.Name))
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	var limit int64
	switch kind {
	case models.AttachmentImage:
		if !strings.HasPrefix(mimeType, "image/") {
			return models.Attachment{}, ErrUnsupportedType
		}
		limit = e.limits.MaxImageBytes
	case models.AttachmentPDF:
		if mimeType != "application/pdf" {
			return models.Attachment{}, ErrUnsupportedType
		}
		limit = e.limits.MaxPDFBytes
	default:
		return models.Attachment{}, ErrUnsupportedType
	}
	if int64(len(f.Data)) > limit {
		return models.Attachment{}, fmt.Errorf("%w (%d bytes, limit %d)", ErrTooLarge, len(f.Data), limit)
	}

	att := models.Attachment{
		ID:       uuid.New().String(),
		Type:     kind,
		MimeType: mimeType,
		DataURL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(f.Data),
		Name:     f.Name,
	}

	if kind == models.AttachmentImage {
		if path, err := writePreview(att.ID, f.Data); err == nil {
			att.PreviewPath = path
		} else {
			e.log.LogError(err, "Failed to write image preview", "name", f.Name)
		}
	}
	return att, nil
}

func (e *Encoder) reject(name string, reason error) {
	e.log.Warn("Attachment rejected", "name", name, "reason", reason.Error())
	if e.notify != nil {
		e.notify(name, reason)
	}
}

// writePreview materializes an ephemeral local copy of an image for display.
// The handle lives until Remove, Take or Clear releases it.
func writePreview(id string, data []byte) (string, error) {
	f, err := os.CreateTemp("", "preview-"+id+"-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func releasePreview(a models.Attachment) {
	if a.PreviewPath != "" {
		os.Remove(a.PreviewPath)
	}
}
