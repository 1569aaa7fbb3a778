package testsupport

import (
	"context"
	"sync"

	"github.com/rwese/obsidian-postprocessor/internal/processor"
)

// FakeProcessor records invocations and the peak number of concurrent calls.
// Fn decides each call's outcome; call numbers start at 1.
type FakeProcessor struct {
	Fn         func(ctx context.Context, req processor.Request, call int) (processor.Output, error)
	Extensions []string

	mu       sync.Mutex
	calls    int
	active   int
	peak     int
	requests []processor.Request
}

// Succeed returns a processor that always produces artifact.
func Succeed(artifact string) *FakeProcessor {
	return &FakeProcessor{Fn: func(context.Context, processor.Request, int) (processor.Output, error) {
		return processor.Output{Artifact: artifact}, nil
	}}
}

// FailTimes returns a processor that fails its first n calls with err and
// then produces artifact.
func FailTimes(n int, err error, artifact string) *FakeProcessor {
	return &FakeProcessor{Fn: func(_ context.Context, _ processor.Request, call int) (processor.Output, error) {
		if call <= n {
			return processor.Output{}, err
		}
		return processor.Output{Artifact: artifact}, nil
	}}
}

// CanProcess filters by Extensions when set.
func (f *FakeProcessor) CanProcess(doc processor.Document) bool {
	return processor.AcceptsExtension(f.Extensions, doc.Attachment.Ext)
}

// Process records the call and delegates to Fn.
func (f *FakeProcessor) Process(ctx context.Context, req processor.Request) (processor.Output, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.active++
	f.peak = max(f.peak, f.active)
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.Fn == nil {
		return processor.Output{}, nil
	}
	return f.Fn(ctx, req, call)
}

// Calls returns the number of invocations so far.
func (f *FakeProcessor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Peak returns the highest number of simultaneous invocations observed.
func (f *FakeProcessor) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// Requests returns a copy of every request received.
func (f *FakeProcessor) Requests() []processor.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]processor.Request, len(f.requests))
	copy(out, f.requests)
	return out
}
