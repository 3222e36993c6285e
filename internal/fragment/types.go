// Package fragment decodes the generated index scripts into source trees and
// implementor entries.
package fragment

import (
	"errors"
	"fmt"
)

// ErrMalformed marks data the decoder had to drop.
var ErrMalformed = errors.New("malformed fragment")

// Kind distinguishes the two fragment families.
type Kind string

const (
	KindSources      Kind = "sources"
	KindImplementors Kind = "implementors"
)

// Error wraps a decode or registration failure with the fragment it came
// from so callers can log it and carry on with the next fragment.
type Error struct {
	Path string
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s fragment %s: %v", e.Kind, e.Path, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
