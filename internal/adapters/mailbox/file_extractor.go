package mailbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FileTextExtractor reads text out of stored attachments. Formats it cannot
// read, such as PDF or images, yield no text rather than an error.
type FileTextExtractor struct {
	maxBytes int64
}

// DefaultMaxAttachmentBytes bounds how much of one attachment is read
const DefaultMaxAttachmentBytes = 1 << 20

// NewFileTextExtractor creates an extractor reading at most maxBytes per file
func NewFileTextExtractor(maxBytes int64) *FileTextExtractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentBytes
	}
	return &FileTextExtractor{maxBytes: maxBytes}
}

// ExtractText returns the text of the attachment at ref or nil when the
// format has no extractable text
func (e *FileTextExtractor) ExtractText(_ context.Context, ref string) (*string, error) {
	ext := strings.ToLower(filepath.Ext(ref))
	switch ext {
	case ".txt", ".csv", ".md", ".log", ".json", ".xml", ".ics", ".html", ".htm", ".eml":
	default:
		return nil, nil
	}

	data, err := e.read(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %s: %w", filepath.Base(ref), err)
	}

	var text string
	switch ext {
	case ".html", ".htm":
		text = HTMLToText(string(data))
	case ".eml":
		msg, err := ParseMessage(strings.NewReader(string(data)))
		if err != nil {
			return nil, err
		}
		text = msg.Subject + "\n" + msg.Body
	default:
		if !utf8.Valid(data) {
			return nil, nil
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return &text, nil
}

func (e *FileTextExtractor) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, e.maxBytes))
}
