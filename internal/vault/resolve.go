package vault

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

var commonAttachmentDirs = []string{"Attachments", "attachments", "Files", "files"}

// resolver maps attachment targets to files. It is built once per scan.
type resolver struct {
	root       string
	folder     string
	extensions map[string]struct{}
	logger     *slog.Logger

	once  sync.Once
	index map[string]string
}

func newResolver(root string, extensions map[string]struct{}, logger *slog.Logger) *resolver {
	return &resolver{
		root:       root,
		folder:     readAttachmentFolder(root),
		extensions: extensions,
		logger:     logger,
	}
}

// readAttachmentFolder returns attachmentFolderPath from .obsidian/app.json.
func readAttachmentFolder(root string) string {
	raw, err := os.ReadFile(filepath.Join(root, ".obsidian", "app.json"))
	if err != nil {
		return ""
	}
	var settings struct {
		AttachmentFolderPath string `json:"attachmentFolderPath"`
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return ""
	}
	folder := strings.TrimSpace(settings.AttachmentFolderPath)
	if folder == "/" {
		return ""
	}
	return folder
}

func (r *resolver) resolve(notePath, target string) string {
	noteDir := filepath.Dir(notePath)
	native := filepath.FromSlash(target)

	candidates := []string{
		filepath.Join(noteDir, native),
		filepath.Join(r.root, native),
	}
	if r.folder != "" {
		if rest, ok := strings.CutPrefix(r.folder, "./"); ok {
			candidates = append(candidates, filepath.Join(noteDir, filepath.FromSlash(rest), native))
		} else {
			candidates = append(candidates, filepath.Join(r.root, filepath.FromSlash(r.folder), native))
		}
	}
	for _, dir := range commonAttachmentDirs {
		candidates = append(candidates, filepath.Join(r.root, dir, native))
	}

	for _, candidate := range candidates {
		if r.within(candidate) && isRegularFile(candidate) {
			return candidate
		}
	}

	r.once.Do(r.buildIndex)
	if found, ok := r.index[indexKey(path.Base(target))]; ok {
		return found
	}
	return ""
}

func (r *resolver) within(candidate string) bool {
	rel, err := filepath.Rel(r.root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// buildIndex records every attachment in the vault by case-folded base name.
// The first match in lexical order wins.
func (r *resolver) buildIndex() {
	r.index = map[string]string{}
	_ = filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != r.root && (d.Name() == ".obsidian" || d.Name() == ".trash") {
				return fs.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(d.Name()), "."))
		if _, ok := r.extensions[ext]; !ok {
			return nil
		}
		key := indexKey(d.Name())
		if _, exists := r.index[key]; !exists {
			r.index[key] = p
		}
		return nil
	})
	if r.logger != nil {
		r.logger.Debug("attachment index built", slog.Int("attachments", len(r.index)))
	}
}

func indexKey(name string) string {
	return strings.ToLower(norm.NFC.String(name))
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
