package vault

import (
	"errors"
	"fmt"
)

// ErrExcluded is returned by ScanNote for notes outside the scan scope.
var ErrExcluded = errors.New("vault: note is excluded from scanning")

// ScanError reports a document that could not be read.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }
