package llm

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxAttachmentBytes is the inline request limit of the Gemini API.
const MaxAttachmentBytes = 20 << 20

var (
	ErrUnsupportedAttachment = errors.New("only PDF and TXT files are supported")
	ErrAttachmentTooLarge    = fmt.Errorf("attachment exceeds %d MiB", MaxAttachmentBytes>>20)
)

const (
	mimePDF      = "application/pdf"
	mimeText     = "text/plain"
	mimeMarkdown = "text/markdown"
)

type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

func LoadAttachment(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedAttachment, path)
	}
	if info.Size() > MaxAttachmentBytes {
		return nil, ErrAttachmentTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	return NewAttachment(filepath.Base(path), data)
}

// SupportedName reports whether name carries an extension NewAttachment
// accepts.
func SupportedName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// NewAttachment validates data against the type implied by name's extension.
func NewAttachment(name string, data []byte) (*Attachment, error) {
	if len(data) > MaxAttachmentBytes {
		return nil, ErrAttachmentTooLarge
	}

	var mime string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			return nil, fmt.Errorf("%w: %s is not a valid PDF", ErrUnsupportedAttachment, name)
		}
		mime = mimePDF
	case ".txt":
		mime = mimeText
	case ".md":
		mime = mimeMarkdown
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAttachment, name)
	}

	if mime != mimePDF && !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not UTF-8 text", ErrUnsupportedAttachment, name)
	}

	return &Attachment{Name: name, MIMEType: mime, Data: data}, nil
}

func (a *Attachment) IsText() bool {
	return a.MIMEType != mimePDF
}

// TextBlock renders a text attachment as a labelled part of the message.
func (a *Attachment) TextBlock() string {
	return fmt.Sprintf("Contenido del archivo adjunto «%s»:\n\n%s", a.Name, string(a.Data))
}
