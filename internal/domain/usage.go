package domain

import (
	"context"
	"sync"
)

type tokenUsageKey struct{}

// TokenUsage collects completion token usage for a single HTTP request.
// The handler puts a pointer into the context before calling the service;
// the completion client adds to it after every call, possibly from several
// goroutines; the handler reads it for response headers.
type TokenUsage struct {
	mu     sync.Mutex
	prompt int
	total  int
	calls  int
}

// NewContextWithUsage returns a context with a usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *TokenUsage) {
	u := &TokenUsage{}
	return context.WithValue(ctx, tokenUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *TokenUsage {
	u, _ := ctx.Value(tokenUsageKey{}).(*TokenUsage)
	return u
}

// Add records one completion call. Safe on a nil receiver.
func (u *TokenUsage) Add(promptTokens, totalTokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.prompt += promptTokens
	u.total += totalTokens
	u.calls++
	u.mu.Unlock()
}

// Snapshot returns the prompt tokens, total tokens and number of calls recorded so far.
func (u *TokenUsage) Snapshot() (promptTokens, totalTokens, calls int) {
	if u == nil {
		return 0, 0, 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.prompt, u.total, u.calls
}
