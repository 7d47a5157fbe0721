package domains

import "fmt"

// Kind classifies a domain list acquisition failure.
type Kind string

// Acquisition failure kinds.
const (
	KindRead     Kind = "read"
	KindDownload Kind = "download"
	KindArchive  Kind = "archive"
	KindParse    Kind = "parse"
	KindCache    Kind = "cache"
)

// Error is returned by Source.Acquire and Parse. No partial list accompanies it.
type Error struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *Error) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("domain list %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("domain list %s %s: %v", e.Kind, e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
