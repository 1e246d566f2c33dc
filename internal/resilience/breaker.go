// Package resilience implements the circuit breaker pattern guarding calls
// across external GRC collaborator boundaries (the entitlement cache and
// the Provisioner; see CollaboratorBreakers). A tripped breaker turns a
// slow or failing collaborator into a fast ErrCircuitOpen instead of
// blocking a rule evaluation or workflow transition on it.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // normal operation, requests pass through
	StateOpen                  // failure threshold exceeded, requests blocked
	StateHalfOpen               // probing whether the collaborator recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration.
type Config struct {
	Name string

	// MaxRequests is the number of probe requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the period in closed state after which counts reset.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// ReadyToTrip decides, given a copy of Counts, whether to open the breaker.
	ReadyToTrip func(counts Counts) bool

	// OnStateChange is invoked whenever the breaker transitions state.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a trip policy tuned for a TransientExternal
// collaborator: open after a majority of recent calls fail.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.Requests >= 5 && counts.FailureRatio() > 0.5
		},
		OnStateChange: func(name string, from, to State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}

// entitlementCacheConfig tunes the breaker guarding pkg/adapters/redisent's
// Redis round trips. These calls are high-volume (once per evaluated user,
// per rule batch) and a tripped breaker only costs a cache miss — the rule
// engine still gets a correct answer from the underlying EntitlementSource.
// So the policy favors staying closed: it takes a sustained majority
// failure rate across a meaningful sample before it opens, and it recovers
// quickly once Redis is healthy again.
func entitlementCacheConfig() *Config {
	return &Config{
		Name:        "entitlement-cache",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c Counts) bool {
			return c.Requests >= 10 && c.FailureRatio() > 0.6
		},
		OnStateChange: logStateChange,
	}
}

// provisionerConfig tunes the breaker guarding pkg/adapters/grpcprovision's
// calls to the downstream provisioning system. Every call here grants or
// revokes real access, so a flapping provisioner is worse than a briefly
// unavailable one: the breaker trips on a short run of consecutive
// failures rather than waiting for a volume-based ratio, and it holds open
// longer before probing again so pkg/coordinator's retry loop isn't
// hammering a collaborator that is mid-incident.
func provisionerConfig() *Config {
	return &Config{
		Name:        "provisioner",
		MaxRequests: 1,
		Interval:    120 * time.Second,
		Timeout:     45 * time.Second,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: logStateChange,
	}
}

func logStateChange(name string, from, to State) {
	slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
}

// Counts holds request/response counters for the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c Counts) FailureRatio() float64 {
	if c.Requests == 0 {
		return 0
	}
	return float64(c.TotalFailures) / float64(c.Requests)
}

func (c *Counts) clear() {
	*c = Counts{}
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker guards calls to a single external collaborator.
type Breaker struct {
	cfg *Config

	mu            sync.Mutex
	state         State
	generation    uint64
	counts        Counts
	expiry        time.Time
	lastStateTime time.Time
}

func New(cfg *Config) *Breaker {
	if cfg == nil {
		cfg = DefaultConfig("default")
	}
	return &Breaker{cfg: cfg, state: StateClosed, lastStateTime: time.Now()}
}

func (b *Breaker) Name() string { return b.cfg.Name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, _ := b.currentState(time.Now())
	return state
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs req if the breaker allows it, recording the outcome.
func (b *Breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	generation, err := b.beforeRequest()
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			b.afterRequest(generation, false)
			panic(r)
		}
	}()
	result, err := req()
	b.afterRequest(generation, err == nil)
	return result, err
}

// ExecuteContext is Execute with a context-aware request function, used for
// the gRPC Provisioner client and other blocking external calls.
func (b *Breaker) ExecuteContext(ctx context.Context, req func(context.Context) (interface{}, error)) (interface{}, error) {
	generation, err := b.beforeRequest()
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			b.afterRequest(generation, false)
			panic(r)
		}
	}()
	result, err := req(ctx)
	b.afterRequest(generation, err == nil)
	return result, err
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)

	if state == StateOpen {
		return generation, ErrCircuitOpen
	}
	if state == StateHalfOpen && b.counts.Requests >= b.cfg.MaxRequests {
		return generation, ErrTooManyRequests
	}
	b.counts.Requests++
	return generation, nil
}

func (b *Breaker) afterRequest(generation uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, current := b.currentState(now)
	if generation != current {
		return
	}
	if success {
		b.onSuccess(state, now)
	} else {
		b.onFailure(state, now)
	}
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.onSuccess()
	case StateHalfOpen:
		b.counts.onSuccess()
		if b.counts.ConsecutiveSuccesses >= b.cfg.MaxRequests {
			b.setState(StateClosed, now)
		}
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.onFailure()
		if b.cfg.ReadyToTrip(b.counts) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

func (b *Breaker) currentState(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.toNewGeneration(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state, b.generation
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.lastStateTime = now
	b.toNewGeneration(now)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, prev, state)
	}
}

func (b *Breaker) toNewGeneration(now time.Time) {
	b.generation++
	b.counts.clear()

	var expiry time.Time
	switch b.state {
	case StateClosed:
		if b.cfg.Interval > 0 {
			expiry = now.Add(b.cfg.Interval)
		}
	case StateOpen:
		expiry = now.Add(b.cfg.Timeout)
	}
	b.expiry = expiry
}

func (b *Breaker) String() string {
	state := b.State()
	counts := b.Counts()
	return fmt.Sprintf("Breaker[%s: state=%s, requests=%d, failures=%d]", b.cfg.Name, state, counts.Requests, counts.TotalFailures)
}

// Manager owns one breaker per named external collaborator
// (e.g. "entitlement-source", "notifier", "provisioner").
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      *Config
}

func NewManager(defaultCfg *Config) *Manager {
	if defaultCfg == nil {
		defaultCfg = DefaultConfig("")
	}
	return &Manager{breakers: make(map[string]*Breaker), cfg: defaultCfg}
}

func (m *Manager) Get(name string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.breakers[name]; ok {
		return b
	}
	cfg := *m.cfg
	cfg.Name = name
	b = New(&cfg)
	m.breakers[name] = b
	return b
}

func (m *Manager) GetOrCreate(name string, cfg *Config) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.breakers[name]; ok {
		return b
	}
	if cfg == nil {
		cfg = m.cfg
	}
	cfg.Name = name
	b = New(cfg)
	m.breakers[name] = b
	return b
}

func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.breakers))
	for name, b := range m.breakers {
		out[name] = Stats{Name: name, State: b.State(), Counts: b.Counts()}
	}
	return out
}

type Stats struct {
	Name   string
	State  State
	Counts Counts
}

// ExecuteWithFallback runs request through cb, falling back when the
// breaker is open, too many half-open probes are in flight, or the call
// itself fails.
func ExecuteWithFallback[T any](b *Breaker, request func() (T, error), fallback func(error) (T, error)) (T, error) {
	result, err := b.Execute(func() (interface{}, error) { return request() })
	if err != nil {
		return fallback(err)
	}
	return result.(T), nil
}

// CollaboratorBreakers pre-configures one breaker per external GRC
// collaborator boundary (spec.md §6), each tuned to how that boundary
// actually fails and how costly tripping it is to the governance workflow.
type CollaboratorBreakers struct {
	manager *Manager

	// EntitlementCache guards pkg/adapters/redisent's Redis reads. Failure
	// degrades to a direct call against the underlying EntitlementSource,
	// so this breaker is tolerant: it trips on a sustained majority
	// failure rate, not on isolated errors.
	EntitlementCache *Breaker

	// Provisioner guards pkg/adapters/grpcprovision's calls to the
	// downstream provisioning system. Failure here means an approved
	// access change didn't land, so this breaker is conservative: a short
	// run of consecutive failures trips it, and it stays open longer
	// before probing again.
	Provisioner *Breaker
}

// NewCollaboratorBreakers builds the breaker set described by
// CollaboratorBreakers, backed by a single Manager for unified Stats/health
// reporting across both boundaries.
func NewCollaboratorBreakers() *CollaboratorBreakers {
	manager := NewManager(nil)
	return &CollaboratorBreakers{
		manager:          manager,
		EntitlementCache: manager.GetOrCreate("entitlement-cache", entitlementCacheConfig()),
		Provisioner:      manager.GetOrCreate("provisioner", provisionerConfig()),
	}
}

// HealthStatus reports "DEGRADED" if any collaborator breaker is open,
// alongside the per-breaker state, for a readiness probe or ops dashboard.
func (c *CollaboratorBreakers) HealthStatus() (string, map[string]string) {
	stats := c.manager.Stats()
	statuses := make(map[string]string, len(stats))
	healthy := true
	for name, s := range stats {
		statuses[name] = s.State.String()
		if s.State == StateOpen {
			healthy = false
		}
	}
	if healthy {
		return "HEALTHY", statuses
	}
	return "DEGRADED", statuses
}
