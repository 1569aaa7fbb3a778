package frontmatter

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned by Encode when a document whose metadata block
// could not be parsed is asked to write new metadata.
var ErrMalformed = errors.New("frontmatter: metadata block is malformed")

// ParseError describes a metadata block that could not be parsed even after
// template masking. It is non-fatal: the document still carries its body.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("frontmatter: %s: %v", e.Reason, e.Err)
	}
	return "frontmatter: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrMalformed) match parse failures.
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformed
}
