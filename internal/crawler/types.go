// Package crawler defines core types shared across the fetch-and-persist pipeline.
package crawler

import (
	"errors"
	"fmt"
	"time"
)

// WellKnownPath is the location of the security.txt file on every host.
const WellKnownPath = "/.well-known/security.txt"

// SecurityTxtURL builds the plain-HTTP URL fetched for a domain.
func SecurityTxtURL(domain string) string {
	return "http://" + domain + WellKnownPath
}

// FetchResult is returned by a Fetcher implementation. StatusCode is informational
// only: any response that arrives in full counts as a successful fetch.
type FetchResult struct {
	Domain     string
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// FetchErrorKind classifies why a fetch did not produce a body.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchTimeout   FetchErrorKind = "timeout"
	FetchTransport FetchErrorKind = "transport"
)

// FetchError reports a failed fetch for one domain.
type FetchError struct {
	Kind   FetchErrorKind
	Domain string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Domain, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PersistError reports a failed write of a fetched body.
type PersistError struct {
	Domain string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Domain, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// FetchErrorKindOf extracts the FetchErrorKind from err, if err wraps a FetchError.
func FetchErrorKindOf(err error) (FetchErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
