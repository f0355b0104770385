package monitor

import "fmt"

// ScrapeErrorKind partitions scrape failures by whether a later attempt
// may succeed.
type ScrapeErrorKind string

// Scrape failure kinds.
const (
	// ScrapeRecoverable covers timeouts, transient network failures and
	// captcha challenges: the next cycle may succeed.
	ScrapeRecoverable ScrapeErrorKind = "recoverable"
	// ScrapeFatal covers accounts that are gone or permanently blocked
	// under the current configuration.
	ScrapeFatal ScrapeErrorKind = "fatal"
)

// ScrapeError wraps a scraping failure with its recoverability so the
// orchestrator can decide between retrying next cycle and marking the
// account degraded.
type ScrapeError struct {
	Handle string
	Kind   ScrapeErrorKind
	Err    error
}

// Error implements the error interface.
func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape @%s (%s): %v", e.Handle, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether a later cycle may succeed for this account.
func (e *ScrapeError) Recoverable() bool {
	return e.Kind == ScrapeRecoverable
}
