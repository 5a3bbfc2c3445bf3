package mailbox

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const (
	senderNameLimit  = 30
	subjectNameLimit = 50
)

// AttachmentStore writes raw attachments under <dir>/<item id>/. Names are
// deterministic so a re-scan overwrites instead of duplicating.
type AttachmentStore struct {
	dir string
}

// NewAttachmentStore creates a store rooted at dir
func NewAttachmentStore(dir string) *AttachmentStore {
	return &AttachmentStore{dir: dir}
}

// Save writes every attachment and returns the file paths in order
func (s *AttachmentStore) Save(itemID string, date time.Time, sender, subject string, attachments []Attachment) ([]string, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	dir := filepath.Join(s.dir, slug(itemID, 0))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}

	base := fmt.Sprintf("%s_%s_%s", date.UTC().Format("20060102"), slug(sender, senderNameLimit), slug(subject, subjectNameLimit))
	seen := make(map[string]int, len(attachments))
	refs := make([]string, 0, len(attachments))
	for _, a := range attachments {
		ext := extensionOf(a)
		name := base + ext
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s_%d%s", base, n+1, ext)
		}
		seen[base+ext]++

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return refs, fmt.Errorf("failed to write attachment %s: %w", name, err)
		}
		refs = append(refs, path)
	}
	return refs, nil
}

func extensionOf(a Attachment) string {
	if ext := strings.ToLower(filepath.Ext(a.Filename)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(a.ContentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// slug keeps letters and digits, joins the rest with underscores and cuts
// the result to limit runes when limit is positive
func slug(s string, limit int) string {
	var b strings.Builder
	pending := false
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
				n++
			}
			pending = false
			b.WriteRune(r)
			n++
		} else {
			pending = true
		}
		if limit > 0 && n >= limit {
			break
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	out := []rune(b.String())
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return strings.Trim(string(out), "_")
}
