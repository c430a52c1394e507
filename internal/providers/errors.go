package providers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mphinancial/terminal/internal/market"
)

// ProviderError wraps a single failed provider call. RateLimited triggers an
// immediate switch to the next provider instead of a same-provider retry.
type ProviderError struct {
	Provider    string
	StatusCode  int
	RateLimited bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err carries a rate-limit signal.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.RateLimited
}

// ExhaustedError is the terminal gateway failure: every candidate provider
// for the key failed. Callers must handle absence of data explicitly; the
// cache layer falls back to stale entries on it.
type ExhaustedError struct {
	Key      market.Key
	Attempts []error
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("all providers exhausted for %s: %s", e.Key, strings.Join(parts, "; "))
}

// IsExhausted reports whether err is a terminal all-providers failure.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// ErrKindNotSupported marks a provider asked for a kind it does not serve.
var ErrKindNotSupported = errors.New("data kind not supported by provider")
