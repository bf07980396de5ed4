// Package ratelimit implements per-(endpoint, identity) fixed-window
// request admission control for outbound calls to the remote store.
package ratelimit

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Rule is one endpoint's window configuration.
type Rule struct {
	Window time.Duration
	Max    int
}

// DefaultRule applies when no pattern matches an endpoint.
var DefaultRule = Rule{Window: 15 * time.Minute, Max: 100}

// defaultRules is the static endpoint table. Matching is exact key first,
// then longest prefix.
var defaultRules = map[string]Rule{
	"auth/login":          {Window: 15 * time.Minute, Max: 5},
	"auth/signup":         {Window: time.Hour, Max: 3},
	"auth/reset-password": {Window: time.Hour, Max: 3},
	"trucks":              {Window: time.Minute, Max: 20},
	"maintenance":         {Window: time.Minute, Max: 30},
	"parts":               {Window: time.Minute, Max: 25},
	"export":              {Window: 5 * time.Minute, Max: 3},
}

// Decision is the outcome of one admission attempt. RetryAfter is set only
// on denial.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Assessment is the advisory output of Classify. It is logged and handed to
// an outer policy layer; it never denies a request by itself.
type Assessment struct {
	Suspicious bool
	Action     string // "throttle" or "block"
}

type bucket struct {
	count       int
	windowStart time.Time
	rule        Rule
}

// Limiter implements fixed-window rate limiting keyed by
// "endpoint|identity". Expired buckets are always treated as reset inside
// Admit, even before the cleanup sweep physically evicts them.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rules   map[string]Rule
	// prefixes holds rule patterns sorted longest-first for prefix matching
	prefixes []string
	logger   *slog.Logger
}

// New creates a Limiter with the default rule table, overlaid with any
// entries in overrides, and starts the background cleanup sweep.
func New(logger *slog.Logger, overrides map[string]Rule) *Limiter {
	rules := make(map[string]Rule, len(defaultRules)+len(overrides))
	for k, v := range defaultRules {
		rules[k] = v
	}
	for k, v := range overrides {
		rules[k] = v
	}

	prefixes := make([]string, 0, len(rules))
	for k := range rules {
		prefixes = append(prefixes, k)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	if logger == nil {
		logger = slog.Default()
	}

	l := &Limiter{
		buckets:  make(map[string]*bucket),
		rules:    rules,
		prefixes: prefixes,
		logger:   logger,
	}
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			l.cleanup()
		}
	}()
	return l
}

// ruleFor resolves the rule for an endpoint: exact match, then longest
// prefix, then the default.
func (l *Limiter) ruleFor(endpoint string) Rule {
	if r, ok := l.rules[endpoint]; ok {
		return r
	}
	for _, p := range l.prefixes {
		if strings.HasPrefix(endpoint, p) {
			return l.rules[p]
		}
	}
	return DefaultRule
}

// Admit decides whether one request against (endpoint, identity) may
// proceed. A bucket resets the instant its window has elapsed; a request
// is admitted iff count < max at admission time, after which the count is
// incremented.
func (l *Limiter) Admit(endpoint, identity string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	key := endpoint + "|" + identity
	rule := l.ruleFor(endpoint)

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rule.Window {
		b = &bucket{count: 0, windowStart: now, rule: rule}
		l.buckets[key] = b
	}

	resetAt := b.windowStart.Add(rule.Window)
	if b.count >= rule.Max {
		retryAfter := time.Until(resetAt)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{
			Allowed:    false,
			Limit:      rule.Max,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter,
		}
	}

	b.count++
	return Decision{
		Allowed:   true,
		Limit:     rule.Max,
		Remaining: rule.Max - b.count,
		ResetAt:   resetAt,
	}
}

// readHeavyPrefixes are endpoints where bursty read traffic is expected and
// the throttle heuristic stays quiet.
var readHeavyPrefixes = []string{"dashboard", "notifications", "calendar"}

// Classify runs the advisory abuse heuristics against the current bucket
// for (endpoint, identity). A request rate above 10 req/s outside
// read-heavy endpoints flags "throttle"; more than 3 requests to an
// auth/-prefixed endpoint within its window flags "block".
func (l *Limiter) Classify(endpoint, identity string) Assessment {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[endpoint+"|"+identity]
	if !ok {
		return Assessment{}
	}
	now := time.Now()
	if now.Sub(b.windowStart) >= b.rule.Window {
		return Assessment{}
	}

	if strings.HasPrefix(endpoint, "auth/") && b.count > 3 {
		a := Assessment{Suspicious: true, Action: "block"}
		l.logger.Warn("suspicious request pattern",
			"endpoint", endpoint, "identity", identity,
			"count", b.count, "action", a.Action)
		return a
	}

	elapsed := now.Sub(b.windowStart).Seconds()
	if elapsed < 1 {
		elapsed = 1
	}
	if !hasReadHeavyPrefix(endpoint) && float64(b.count)/elapsed > 10 {
		a := Assessment{Suspicious: true, Action: "throttle"}
		l.logger.Warn("suspicious request pattern",
			"endpoint", endpoint, "identity", identity,
			"count", b.count, "action", a.Action)
		return a
	}
	return Assessment{}
}

func hasReadHeavyPrefix(endpoint string) bool {
	for _, p := range readHeavyPrefixes {
		if strings.HasPrefix(endpoint, p) {
			return true
		}
	}
	return false
}

// cleanup evicts buckets whose window elapsed more than one window ago.
// Correctness never depends on eviction: Admit treats expired buckets as
// already reset.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for k, b := range l.buckets {
		if now.Sub(b.windowStart) >= 2*b.rule.Window {
			delete(l.buckets, k)
		}
	}
}

// BucketInfo is one live bucket, exposed for status displays.
type BucketInfo struct {
	Key       string
	Count     int
	Limit     int
	ResetAt   time.Time
	Exhausted bool
}

// Snapshot returns the live buckets sorted by key.
func (l *Limiter) Snapshot() []BucketInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var out []BucketInfo
	for k, b := range l.buckets {
		if now.Sub(b.windowStart) >= b.rule.Window {
			continue
		}
		out = append(out, BucketInfo{
			Key:       k,
			Count:     b.count,
			Limit:     b.rule.Max,
			ResetAt:   b.windowStart.Add(b.rule.Window),
			Exhausted: b.count >= b.rule.Max,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
