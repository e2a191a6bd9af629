package attachments

import (
	"bytes"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/pkg/logger"
)

type rejection struct {
	name   string
	reason error
}

func newTestEncoder() (*Encoder, *[]rejection) {
	var rejected []rejection
	log := logger.New(logger.Config{Level: "error", JSON: true})
	enc := NewEncoder(func(name string, reason error) {
		rejected = append(rejected, rejection{name, reason})
	}, log)
	return enc, &rejected
}

func pngFile(name string, size int) File {
	return File{Name: name, MimeType: "image/png", Data: bytes.Repeat([]byte{0x89}, size)}
}

func pdfFile(name string, size int) File {
	return File{Name: name, MimeType: "application/pdf", Data: bytes.Repeat([]byte{0x25}, size)}
}

func TestAddEncodesDataURL(t *testing.T) {
	enc, rejected := newTestEncoder()

	accepted := enc.Add([]File{{Name: "tiny.png", MimeType: "image/png", Data: []byte("hello")}}, models.AttachmentImage)

	require.Len(t, accepted, 1)
	assert.Empty(t, *rejected)

	a := accepted[0]
	assert.Equal(t, models.AttachmentImage, a.Type)
	assert.Equal(t, "image/png", a.MimeType)
	assert.Equal(t, "tiny.png", a.Name)
	assert.NotEmpty(t, a.ID)

	prefix := "data:image/png;base64,"
	require.True(t, strings.HasPrefix(a.DataURL, prefix))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(a.DataURL, prefix))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), decoded)
}

func TestAddInfersMimeFromExtension(t *testing.T) {
	enc, rejected := newTestEncoder()

	accepted := enc.Add([]File{{Name: "photo.jpg", Data: []byte("jpegdata")}}, models.AttachmentImage)

	require.Len(t, accepted, 1)
	assert.Empty(t, *rejected)
	assert.Equal(t, "image/jpeg", accepted[0].MimeType)
}

func TestAddTruncatesToRemainingSlots(t *testing.T) {
	enc, rejected := newTestEncoder()

	batch := []File{
		pngFile("1.png", 10),
		pngFile("2.png", 10),
		pngFile("3.png", 10),
		pngFile("4.png", 10),
		pngFile("5.png", 10),
	}
	accepted := enc.Add(batch, models.AttachmentImage)

	assert.Len(t, accepted, MaxPerMessage)
	assert.Len(t, enc.Pending(), MaxPerMessage)
	require.Len(t, *rejected, 2)
	for _, r := range *rejected {
		assert.ErrorIs(t, r.reason, ErrLimitReached)
	}

	// A follow-up add has no slots left
	more := enc.Add([]File{pngFile("6.png", 10)}, models.AttachmentImage)
	assert.Empty(t, more)
	assert.Len(t, enc.Pending(), MaxPerMessage)
}

func TestAddSizeCeilings(t *testing.T) {
	enc, rejected := newTestEncoder()

	// 9 MB image is over the 8 MB ceiling
	accepted := enc.Add([]File{pngFile("big.png", 9<<20)}, models.AttachmentImage)
	assert.Empty(t, accepted)
	require.Len(t, *rejected, 1)
	assert.ErrorIs(t, (*rejected)[0].reason, ErrTooLarge)

	// 10 MB PDF fits under the 15 MB ceiling
	accepted = enc.Add([]File{pdfFile("paper.pdf", 10<<20)}, models.AttachmentPDF)
	assert.Len(t, accepted, 1)
	assert.Len(t, *rejected, 1)
}

func TestAddRejectsWrongType(t *testing.T) {
	enc, rejected := newTestEncoder()

	// .txt submitted through the image selector
	accepted := enc.Add([]File{{Name: "notes.txt", Data: []byte("text")}}, models.AttachmentImage)
	assert.Empty(t, accepted)
	require.Len(t, *rejected, 1)
	assert.ErrorIs(t, (*rejected)[0].reason, ErrUnsupportedType)

	// image submitted through the pdf selector
	accepted = enc.Add([]File{pngFile("sneaky.png", 10)}, models.AttachmentPDF)
	assert.Empty(t, accepted)
	assert.Len(t, *rejected, 2)
}

func TestAddSkipsBadFilesIndividually(t *testing.T) {
	enc, rejected := newTestEncoder()

	batch := []File{
		pngFile("good.png", 10),
		{Name: "bad.txt", Data: []byte("nope")},
		pngFile("also-good.png", 10),
	}
	accepted := enc.Add(batch, models.AttachmentImage)

	assert.Len(t, accepted, 2)
	require.Len(t, *rejected, 1)
	assert.Equal(t, "bad.txt", (*rejected)[0].name)
}

func TestImagePreviewLifecycle(t *testing.T) {
	enc, _ := newTestEncoder()

	accepted := enc.Add([]File{pngFile("pic.png", 10)}, models.AttachmentImage)
	require.Len(t, accepted, 1)
	preview := accepted[0].PreviewPath
	require.NotEmpty(t, preview)

	_, err := os.Stat(preview)
	require.NoError(t, err, "preview file exists while pending")

	enc.Remove(accepted[0].ID)
	_, err = os.Stat(preview)
	assert.True(t, errors.Is(err, os.ErrNotExist), "preview released on remove")
	assert.Empty(t, enc.Pending())
}

func TestTakeClearsPendingAndPreviews(t *testing.T) {
	enc, _ := newTestEncoder()

	enc.Add([]File{pngFile("a.png", 10), pdfFile("b.pdf", 10)}, models.AttachmentImage)
	enc.Add([]File{pdfFile("b.pdf", 10)}, models.AttachmentPDF)

	taken := enc.Take()
	assert.Len(t, taken, 2) // the pdf via the image selector was rejected
	assert.Empty(t, enc.Pending())

	for _, a := range taken {
		assert.Empty(t, a.PreviewPath, "previews are released on take")
	}
}

func TestRestoreRequeuesTakenAttachments(t *testing.T) {
	enc, _ := newTestEncoder()

	enc.Add([]File{pdfFile("paper.pdf", 10)}, models.AttachmentPDF)
	taken := enc.Take()
	require.Len(t, taken, 1)
	require.Empty(t, enc.Pending())

	// A rejected send hands the attachments back to ride on the next one.
	enc.Restore(taken)
	pending := enc.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "paper.pdf", pending[0].Name)
	assert.NotEmpty(t, pending[0].DataURL)

	assert.Len(t, enc.Take(), 1)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sample.png"
	require.NoError(t, os.WriteFile(path, []byte("pngdata"), 0o644))

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sample.png", f.Name)
	assert.Equal(t, []byte("pngdata"), f.Data)

	_, err = ReadFile(dir + "/missing.png")
	assert.Error(t, err)
}
