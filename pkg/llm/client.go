// Package llm defines the external language-model collaborator contract
// (spec.md §6 "LLM client"). The cognitive core depends only on the Client
// interface; spec.md §1 explicitly keeps the HTTP client itself out of
// scope, so this package ships only the interface plus a deterministic
// mock and a throttling decorator — never a concrete HTTP provider.
package llm

import (
	"context"
	"errors"
)

// ErrRateLimited signals an HTTP 429-equivalent response, which the core's
// throttle must observe (spec.md §6).
var ErrRateLimited = errors.New("llm: rate limited")

// Client is the narrow contract the tiered executor calls through
// (spec.md §6: "call(prompt: text, temperature) -> text | none").
// Generate returns ("", nil) to mean "no output" (the spec's `none`), and a
// non-nil error for failures the core's throttle/backoff must react to.
type Client interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Func adapts a plain function to the Client interface, mirroring the
// teacher's core/llm.Provider shape (Generate/Name/Available) reduced to
// the one method spec.md actually requires of the core.
type Func func(ctx context.Context, prompt string, temperature float64) (string, error)

func (f Func) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return f(ctx, prompt, temperature)
}
