// Package ratelimit tracks per-provider request budgets: a per-minute
// limiter, a rolling daily window, and an overload cooldown.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown is how long a provider is skipped after it signals
// overload.
const DefaultCooldown = 60 * time.Second

// Budget is one provider's request budget. All methods are safe for
// concurrent use.
type Budget struct {
	mu            sync.Mutex
	provider      string
	limiter       *rate.Limiter
	dailyLimit    int
	windowStart   time.Time
	windowCount   int
	cooldownUntil time.Time
	cooldown      time.Duration
	now           func() time.Time
}

// NewBudget creates a budget allowing perMinute requests per minute and
// perDay requests per rolling day. Zero or negative ceilings mean unlimited
// for that window. The clock is injected for tests; pass nil for time.Now.
func NewBudget(provider string, perMinute, perDay int, now func() time.Time) *Budget {
	if now == nil {
		now = time.Now
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}

	return &Budget{
		provider:    provider,
		limiter:     limiter,
		dailyLimit:  perDay,
		windowStart: now(),
		cooldown:    DefaultCooldown,
		now:         now,
	}
}

// Allow consumes one request from the budget. It returns false while the
// provider is cooling down or either window is exhausted.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Before(b.cooldownUntil) {
		return false
	}

	if now.Sub(b.windowStart) >= 24*time.Hour {
		b.windowStart = now
		b.windowCount = 0
	}
	if b.dailyLimit > 0 && b.windowCount >= b.dailyLimit {
		return false
	}

	if !b.limiter.AllowN(now, 1) {
		return false
	}

	b.windowCount++
	return true
}

// ReportOverload puts the provider into cooldown after it signaled overload
// (HTTP 429 or equivalent).
func (b *Budget) ReportOverload() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cooldownUntil = b.now().Add(b.cooldown)
}

// InCooldown reports whether the provider is currently being skipped.
func (b *Budget) InCooldown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Before(b.cooldownUntil)
}

// Provider returns the provider name this budget belongs to.
func (b *Budget) Provider() string { return b.provider }

// Registry holds the budget for each configured provider.
type Registry struct {
	mu      sync.RWMutex
	budgets map[string]*Budget
}

// NewRegistry creates an empty budget registry.
func NewRegistry() *Registry {
	return &Registry{budgets: make(map[string]*Budget)}
}

// Register adds or replaces a provider's budget.
func (r *Registry) Register(budget *Budget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budgets[budget.Provider()] = budget
}

// Get returns the budget for provider, or nil when none is registered.
// Providers without a registered budget are treated as unlimited by callers.
func (r *Registry) Get(provider string) *Budget {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.budgets[provider]
}
