// Package geocode defines the reverse-geocoding collaborator contract
// (spec.md §1: "Reverse-geocoding HTTP client (called via a simple
// resolve(lat,lng) contract)"). The actual HTTP provider is an external
// collaborator outside this system's scope; this package only pins the
// interface, a best-effort timeout, and the request-rate etiquette a
// caller must respect.
package geocode

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Result is what a reverse-geocode lookup resolves to (spec.md §3.1
// Address fields it can populate: street/city/county/state/zipcode plus
// a confidence tier).
type Result struct {
	Street     string
	City       string
	County     string
	State      string
	Zipcode    string
	Confidence string // high, medium, low (spec.md §3.1 Address.confidence)
	Tier       string // provider-reported precision tier, stored as geocode_tier
}

// Resolver resolves coordinates to a postal address. Implementations wrap
// a specific external provider's HTTP API; this package never implements
// one itself (spec.md §1 frames reverse-geocoding as an external
// collaborator, not a component this archive owns).
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64) (Result, error)
}

// Timeout is the 10s best-effort budget spec.md §5 assigns to reverse
// geocoding.
const Timeout = 10 * time.Second

// RateLimit is the "<=1 req/s with a descriptive user-agent" etiquette
// spec.md §5 Network requires of any reverse-geocoding provider.
const RateLimit = 1 // requests per second

// ThrottledResolver wraps a Resolver with the rate limit and timeout
// spec.md §5 requires, so every concrete provider gets the etiquette for
// free instead of reimplementing it.
type ThrottledResolver struct {
	inner   Resolver
	limiter *rate.Limiter
}

// NewThrottledResolver wraps inner with the standard ≤1 req/s limiter.
func NewThrottledResolver(inner Resolver) *ThrottledResolver {
	return &ThrottledResolver{inner: inner, limiter: rate.NewLimiter(rate.Limit(RateLimit), 1)}
}

// Resolve waits for rate-limiter admission, then calls inner.Resolve
// under a bounded timeout. A best-effort failure (timeout, provider
// error) is returned to the caller rather than retried; reverse
// geocoding is an enrichment, not a blocking requirement (spec.md §5).
func (t *ThrottledResolver) Resolve(ctx context.Context, lat, lng float64) (Result, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()
	return t.inner.Resolve(ctx, lat, lng)
}
