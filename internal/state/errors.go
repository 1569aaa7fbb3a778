package state

import (
	"errors"
	"fmt"
)

// ErrInvalidNamespace reports a processor_state value with an unexpected shape.
var ErrInvalidNamespace = errors.New("state: processor_state has an unexpected shape")

// WriteError reports an I/O or encoding failure while updating a note. The
// note on disk is left as it was.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("state: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
