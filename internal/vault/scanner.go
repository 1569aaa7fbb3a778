package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rwese/obsidian-postprocessor/internal/frontmatter"
	"github.com/rwese/obsidian-postprocessor/internal/logging"
)

// Options configures a Scanner.
type Options struct {
	Root                 string
	ExcludePatterns      []string
	DocumentExtensions   []string
	AttachmentExtensions []string
}

// Entry is one scanned note.
type Entry struct {
	Path        string
	RelPath     string
	ModTime     time.Time
	Size        int64
	Document    *frontmatter.Document
	ParseErr    error
	Attachments []AttachmentRef
}

// Scanner enumerates notes in a vault.
type Scanner struct {
	root        string
	exclude     []string
	documentExt map[string]struct{}
	attachExt   map[string]struct{}
	logger      *slog.Logger
}

var errStopWalk = errors.New("stop walk")

// NewScanner constructs a scanner. Extensions are matched case-insensitively.
func NewScanner(opts Options, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	root := filepath.Clean(opts.Root)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	docExt := opts.DocumentExtensions
	if len(docExt) == 0 {
		docExt = []string{".md"}
	}
	return &Scanner{
		root:        root,
		exclude:     append([]string(nil), opts.ExcludePatterns...),
		documentExt: extensionSet(docExt, true),
		attachExt:   extensionSet(opts.AttachmentExtensions, false),
		logger:      logger.With(logging.String(logging.FieldComponent, "scanner")),
	}
}

// Root returns the absolute vault root.
func (s *Scanner) Root() string { return s.root }

// Scan walks the vault in lexical order. Each yielded pair carries either an
// entry or a *ScanError for a note that could not be read.
func (s *Scanner) Scan(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		res := newResolver(s.root, s.attachExt, s.logger)
		err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if p == s.root {
				return walkErr
			}
			rel := s.rel(p)
			if walkErr != nil {
				if !yield(Entry{Path: p, RelPath: rel}, &ScanError{Path: p, Err: walkErr}) {
					return errStopWalk
				}
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if s.excluded(rel) {
					s.logger.Debug("skipping excluded directory", logging.String("path", rel))
					return fs.SkipDir
				}
				return nil
			}
			if !s.isDocument(d.Name()) || s.excluded(rel) {
				return nil
			}
			entry, err := s.load(p, rel, res)
			if !yield(entry, err) {
				return errStopWalk
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			yield(Entry{Path: s.root}, &ScanError{Path: s.root, Err: err})
		}
	}
}

// ScanNote loads a single note, applying the same filters as Scan.
func (s *Scanner) ScanNote(ctx context.Context, notePath string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	abs, err := filepath.Abs(notePath)
	if err != nil {
		return Entry{}, fmt.Errorf("resolve note path: %w", err)
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Entry{}, fmt.Errorf("%w: %s is outside the vault", ErrExcluded, notePath)
	}
	rel = filepath.ToSlash(rel)
	if !s.isDocument(abs) || s.excludedWithParents(rel) {
		return Entry{}, fmt.Errorf("%w: %s", ErrExcluded, rel)
	}
	return s.load(abs, rel, newResolver(s.root, s.attachExt, s.logger))
}

// Tracks reports whether a change to path can affect a scan: directories
// outside the exclusion rules, notes, and attachments with an allowed
// extension.
func (s *Scanner) Tracks(path string, isDir bool) bool {
	rel := s.rel(path)
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, "../") || s.excludedWithParents(rel) {
		return false
	}
	if isDir || s.isDocument(path) {
		return true
	}
	_, ok := s.attachExt[strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")]
	return ok
}

func (s *Scanner) load(p, rel string, res *resolver) (Entry, error) {
	entry := Entry{Path: p, RelPath: rel}
	info, err := os.Stat(p)
	if err != nil {
		return entry, &ScanError{Path: p, Err: err}
	}
	if !info.Mode().IsRegular() {
		return entry, &ScanError{Path: p, Err: fmt.Errorf("not a regular file")}
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return entry, &ScanError{Path: p, Err: err}
	}
	entry.ModTime = info.ModTime()
	entry.Size = info.Size()

	doc, parseErr := frontmatter.Decode(string(raw))
	entry.Document = doc
	if parseErr != nil {
		entry.ParseErr = parseErr
		s.logger.Warn("frontmatter could not be parsed",
			logging.String(logging.FieldDocument, rel),
			logging.Error(parseErr),
			logging.String(logging.FieldImpact, "note is skipped to protect its contents"),
		)
	}

	entry.Attachments = ExtractAttachments(doc.Body, s.attachExt)
	for i := range entry.Attachments {
		ref := &entry.Attachments[i]
		ref.Path = res.resolve(p, ref.Target)
		if ref.Path == "" {
			s.logger.Debug("attachment not found on disk",
				logging.String(logging.FieldDocument, rel),
				logging.String(logging.FieldAttachment, ref.Target),
			)
		}
	}
	return entry, nil
}

func (s *Scanner) rel(p string) string {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// excludedWithParents also checks every ancestor directory, matching what a
// pruned walk would have skipped.
func (s *Scanner) excludedWithParents(rel string) bool {
	if s.excluded(rel) {
		return true
	}
	for dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." && dir != "/" && dir != ""; dir = filepath.ToSlash(filepath.Dir(dir)) {
		if s.excluded(dir) {
			return true
		}
	}
	return false
}

func (s *Scanner) isDocument(name string) bool {
	_, ok := s.documentExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

func extensionSet(values []string, withDot bool) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), ".")
		if v == "" {
			continue
		}
		if withDot {
			v = "." + v
		}
		set[v] = struct{}{}
	}
	return set
}
