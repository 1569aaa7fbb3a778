package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rwese/obsidian-postprocessor/internal/fileutil"
	"github.com/rwese/obsidian-postprocessor/internal/frontmatter"
)

// Placement controls where artifacts are inserted into the body.
type Placement string

const (
	PlacementAppend     Placement = "append"
	PlacementAfterEmbed Placement = "after_embed"
)

// Artifact is text to insert into the body together with a record update.
// Embed is the raw embed syntax used to locate the insertion point for
// PlacementAfterEmbed.
type Artifact struct {
	Text  string
	Embed string
}

// Store reads and writes processing records.
type Store struct {
	placement Placement
	cleanup   map[string][]string
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Store.
type Option func(*Store)

// WithPlacement selects the artifact placement strategy.
func WithPlacement(p Placement) Option {
	return func(s *Store) {
		if p != "" {
			s.placement = p
		}
	}
}

// WithCleanupKeys lists frontmatter keys removed when processor completes.
func WithCleanupKeys(processor string, keys []string) Option {
	return func(s *Store) {
		if len(keys) > 0 {
			s.cleanup[processor] = append([]string(nil), keys...)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs a Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		placement: PlacementAppend,
		cleanup:   map[string][]string{},
		now:       time.Now,
		locks:     map[string]*pathLock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the record for (attachment, processor). A missing record, or an
// unreadable namespace, reports false. A processor-level record without
// per-attachment entries applies to every attachment of the note.
func (s *Store) Get(doc *frontmatter.Document, attachment, processor string) (Record, bool) {
	ns, err := readNamespace(doc)
	if err != nil {
		return Record{}, false
	}
	entry, ok := ns[processor]
	if !ok {
		return Record{}, false
	}
	if rec, ok := entry.Attachments[attachment]; ok {
		return fromWire(rec), true
	}
	if rec, ok := entry.fallback(); ok {
		return fromWire(rec), true
	}
	return Record{}, false
}

// Validate reports whether the processing namespace of doc can be read.
func Validate(doc *frontmatter.Document) error {
	_, err := readNamespace(doc)
	return err
}

// IsProcessed reports whether a completed record exists.
func (s *Store) IsProcessed(doc *frontmatter.Document, attachment, processor string) bool {
	rec, ok := s.Get(doc, attachment, processor)
	return ok && rec.Status == StatusCompleted
}

// Records returns every record in doc keyed by processor and attachment. A
// processor-level record without per-attachment entries is keyed by the empty
// attachment name.
func Records(doc *frontmatter.Document) (map[string]map[string]Record, error) {
	ns, err := readNamespace(doc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]Record, len(ns))
	for processor, entry := range ns {
		if rec, ok := entry.fallback(); ok {
			out[processor] = map[string]Record{"": fromWire(rec)}
			continue
		}
		recs := make(map[string]Record, len(entry.Attachments))
		for name, rec := range entry.Attachments {
			recs[name] = fromWire(rec)
		}
		out[processor] = recs
	}
	return out, nil
}

// Update writes rec for (attachment, processor) into the note at path. When
// artifact.Text is non-empty it is inserted into the body in the same write.
// Configured cleanup keys are removed once the record is completed.
func (s *Store) Update(ctx context.Context, path, attachment, processor string, rec Record, artifact Artifact) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Path: path, Op: "update", Err: err}
	}
	unlock := s.lock(path)
	defer unlock()

	return s.rewrite(path, func(doc *frontmatter.Document, ns map[string]processorEntry) (bool, error) {
		if rec.Timestamp.IsZero() {
			rec.Timestamp = s.now()
		}
		entry := ns[processor]
		if entry.Attachments == nil {
			entry.Attachments = map[string]wireRecord{}
		}
		entry.Attachments[attachment] = toWire(rec)
		entry.aggregate()
		ns[processor] = entry

		if rec.Status == StatusCompleted {
			for _, key := range s.cleanup[processor] {
				if key != Namespace {
					doc.Metadata.Delete(key)
				}
			}
		}
		if strings.TrimSpace(artifact.Text) != "" {
			doc.Body = insertArtifact(doc.Body, artifact, s.placement, doc.Newline())
		}
		return true, nil
	})
}

// Reset removes records so the next run reprocesses them. Empty processor or
// attachment match everything. It returns the number of records removed.
func (s *Store) Reset(ctx context.Context, path, processor, attachment string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &WriteError{Path: path, Op: "reset", Err: err}
	}
	unlock := s.lock(path)
	defer unlock()

	removed := 0
	err := s.rewrite(path, func(_ *frontmatter.Document, ns map[string]processorEntry) (bool, error) {
		for name, entry := range ns {
			if processor != "" && name != processor {
				continue
			}
			if attachment == "" {
				removed += max(len(entry.Attachments), 1)
				delete(ns, name)
				continue
			}
			if _, ok := entry.Attachments[attachment]; !ok {
				continue
			}
			delete(entry.Attachments, attachment)
			removed++
			if len(entry.Attachments) == 0 {
				delete(ns, name)
				continue
			}
			entry.aggregate()
			ns[name] = entry
		}
		return removed > 0, nil
	})
	return removed, err
}

type mutation func(doc *frontmatter.Document, ns map[string]processorEntry) (bool, error)

func (s *Store) rewrite(path string, mutate mutation) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &WriteError{Path: path, Op: "read", Err: err}
	}
	doc, err := frontmatter.Decode(string(raw))
	if err != nil {
		return &WriteError{Path: path, Op: "decode", Err: err}
	}
	ns, err := readNamespace(doc)
	if err != nil {
		return &WriteError{Path: path, Op: "decode", Err: err}
	}

	changed, err := mutate(doc, ns)
	if err != nil {
		return &WriteError{Path: path, Op: "update", Err: err}
	}
	if !changed {
		return nil
	}

	if len(ns) == 0 {
		doc.Metadata.Delete(Namespace)
	} else if err := doc.Metadata.Set(Namespace, ns); err != nil {
		return &WriteError{Path: path, Op: "encode", Err: err}
	}
	text, err := frontmatter.Encode(doc)
	if err != nil {
		return &WriteError{Path: path, Op: "encode", Err: err}
	}
	if err := fileutil.WriteFileAtomic(path, []byte(text)); err != nil {
		return &WriteError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// lock serializes read-modify-write cycles on one path within this process.
func (s *Store) lock(path string) func() {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &pathLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func readNamespace(doc *frontmatter.Document) (map[string]processorEntry, error) {
	ns := map[string]processorEntry{}
	if doc == nil || doc.Metadata == nil {
		return ns, nil
	}
	node := resolveAlias(doc.Metadata.Node(Namespace))
	if node == nil || node.Tag == "!!null" {
		return ns, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: not a mapping", ErrInvalidNamespace)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		entry, ok, err := decodeEntry(node.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidNamespace, name, err)
		}
		if ok {
			ns[name] = entry
		}
	}
	return ns, nil
}

// decodeEntry reads one processor entry. A bare scalar is a status written by
// earlier releases; null entries are ignored.
func decodeEntry(node *yaml.Node) (processorEntry, bool, error) {
	var entry processorEntry
	node = resolveAlias(node)
	switch {
	case node == nil, node.Kind == yaml.ScalarNode && node.Tag == "!!null":
		return entry, false, nil
	case node.Kind == yaml.ScalarNode:
		entry.Status = parseStatus(node.Value)
	case node.Kind == yaml.MappingNode:
		if err := node.Decode(&entry); err != nil {
			return entry, false, err
		}
		entry.Status = parseStatus(string(entry.Status))
		entry.Attempts = max(entry.Attempts, entry.RetryCount)
		entry.RetryCount = 0
	default:
		return entry, false, errors.New("expected a status or a mapping")
	}
	if entry.Attachments == nil {
		entry.Attachments = map[string]wireRecord{}
	}
	return entry, true, nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
