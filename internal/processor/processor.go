package processor

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rwese/obsidian-postprocessor/internal/frontmatter"
	"github.com/rwese/obsidian-postprocessor/internal/services"
	"github.com/rwese/obsidian-postprocessor/internal/state"
)

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = services.ErrPermanent

// Attachment identifies the media file being processed.
type Attachment struct {
	// Target is the reference as written in the note.
	Target string
	Name   string
	Ext    string
	// Path is the resolved file on disk; empty when unresolved.
	Path string
}

// Document describes a candidate (note, attachment) pair.
type Document struct {
	ID         string
	Path       string
	Metadata   *frontmatter.Metadata
	Attachment Attachment
}

// Request is the input to a single invocation.
type Request struct {
	DocumentID   string
	DocumentPath string
	VaultRoot    string
	Attachment   Attachment
	// Existing is the prior record for this pair, nil when absent.
	Existing *state.Record
}

// Output is a successful invocation's result.
type Output struct {
	// Artifact is inserted into the note body; empty leaves the body as is.
	Artifact string
	Message  string
}

// Processor turns an attachment into derived text. Implementations must be
// safe to call again for the same input after a failure.
type Processor interface {
	CanProcess(doc Document) bool
	Process(ctx context.Context, req Request) (Output, error)
}

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Func adapts a function into a Processor that accepts every attachment.
type Func func(ctx context.Context, req Request) (Output, error)

// CanProcess always returns true.
func (Func) CanProcess(Document) bool { return true }

// Process calls f.
func (f Func) Process(ctx context.Context, req Request) (Output, error) { return f(ctx, req) }

// AcceptsExtension reports whether ext is in allowed. An empty allow-list
// accepts everything.
func AcceptsExtension(allowed []string, ext string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return slices.Contains(allowed, ext)
}

// RequireResolved returns a permanent not-found error when the attachment was
// not located on disk.
func RequireResolved(a Attachment) error {
	if a.Path != "" {
		return nil
	}
	return services.Wrap(services.ErrNotFound, "processor", "resolve attachment", fmt.Sprintf("%s not found in vault", a.Target), nil)
}
