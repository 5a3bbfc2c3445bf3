package mailbox

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
)

// DirFetcher serves messages from a directory tree of .eml files or a
// Maildir (cur and new subdirectories)
type DirFetcher struct {
	root        string
	attachments *AttachmentStore
	logger      *zap.Logger
}

// NewDirFetcher creates a directory source. attachments may be nil to leave
// attachments unsaved.
func NewDirFetcher(root string, attachments *AttachmentStore, logger *zap.Logger) *DirFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirFetcher{root: root, attachments: attachments, logger: logger}
}

// Fetch returns up to maxResults messages inside dateRange, newest first.
// A non-empty category hint keeps only messages that mention the category.
func (f *DirFetcher) Fetch(ctx context.Context, categoryHint core.Category, dateRange core.DateRange, maxResults int) ([]*core.RawItem, error) {
	paths, err := f.messagePaths()
	if err != nil {
		return nil, err
	}

	type parsed struct {
		path string
		msg  *Message
	}
	var matched []parsed
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := f.read(path)
		if err != nil {
			f.logger.Warn("Skipping unreadable message", zap.String("path", path), zap.Error(err))
			continue
		}
		if !dateRange.IsZero() && !dateRange.Contains(msg.Date) {
			continue
		}
		if categoryHint != "" && core.CategoryScore(categoryHint, msg.Subject+"\n"+msg.Body) == 0 {
			continue
		}
		matched = append(matched, parsed{path: path, msg: msg})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].msg.Date.After(matched[j].msg.Date)
	})
	if maxResults > 0 && len(matched) > maxResults {
		matched = matched[:maxResults]
	}

	items := make([]*core.RawItem, 0, len(matched))
	for _, m := range matched {
		id := f.itemID(m.path, m.msg)
		item := &core.RawItem{
			ID:      id,
			Sender:  m.msg.Sender,
			Subject: m.msg.Subject,
			Date:    m.msg.Date,
			Body:    m.msg.Body,
		}
		if f.attachments != nil && len(m.msg.Attachments) > 0 {
			refs, err := f.attachments.Save(id, m.msg.Date, m.msg.Sender, m.msg.Subject, m.msg.Attachments)
			if err != nil {
				f.logger.Warn("Failed to save attachments", zap.String("item_id", id), zap.Error(err))
			}
			item.AttachmentRefs = refs
		}
		items = append(items, item)
	}

	f.logger.Debug("Read messages from directory",
		zap.String("root", f.root),
		zap.Int("files", len(paths)),
		zap.Int("matched", len(items)))
	return items, nil
}

func (f *DirFetcher) messagePaths() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		parent := filepath.Base(filepath.Dir(path))
		if strings.EqualFold(filepath.Ext(path), ".eml") || parent == "cur" || parent == "new" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read mail directory %s: %w", f.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (f *DirFetcher) read(path string) (*Message, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseMessage(file)
}

// itemID is stable across scans: derived from the Message-ID when present,
// otherwise from the path relative to the root
func (f *DirFetcher) itemID(path string, msg *Message) string {
	key := msg.MessageID
	if key == "" {
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			rel = path
		}
		key = "file:" + filepath.ToSlash(rel)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
