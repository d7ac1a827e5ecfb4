package backtest

import (
	"fmt"
	"sort"

	"macmarket/internal/domain"
)

// Strategy decides when to open and when to close a long position. Risk
// exits (stop-loss, take-profit, max hold) are handled by the engine.
type Strategy interface {
	Name() string
	Description() string
	Enter(s Snapshot) bool
	Exit(s Snapshot, pos domain.Position) bool
}

// Registry holds named strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// DefaultRegistry holds the built-in strategies. minReadiness gates
// haco_ready entries.
func DefaultRegistry(minReadiness float64) *Registry {
	r := NewRegistry()
	r.Register(HACO{})
	r.Register(HACOReady{MinReadiness: minReadiness})
	r.Register(HACOLT{})
	r.Register(BuyHold{})
	return r
}

func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Lookup is Get with an InvalidParameter error for unknown names.
func (r *Registry) Lookup(name string) (Strategy, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, &domain.ParameterError{Name: "strategy", Value: name, Reason: fmt.Sprintf("unknown strategy, expected one of %v", r.List())}
	}
	return s, nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// trendUp is a confirmed UP: the default state before any trigger does
// not count.
func trendUp(s Snapshot) bool {
	return s.Warm && s.Determined && s.State == domain.StateUp
}

// HACO enters on an UP state and exits on DOWN.
type HACO struct{}

func (HACO) Name() string        { return "haco" }
func (HACO) Description() string { return "long while the HACO state is UP" }

func (HACO) Enter(s Snapshot) bool { return trendUp(s) }

func (HACO) Exit(s Snapshot, _ domain.Position) bool { return s.State == domain.StateDown }

// HACOReady additionally requires the readiness score to clear a minimum.
type HACOReady struct {
	MinReadiness float64
}

func (HACOReady) Name() string { return "haco_ready" }
func (h HACOReady) Description() string {
	return fmt.Sprintf("long while HACO is UP and readiness >= %.0f", h.MinReadiness)
}

func (h HACOReady) Enter(s Snapshot) bool {
	return trendUp(s) && s.Readiness.Score >= h.MinReadiness
}

func (HACOReady) Exit(s Snapshot, _ domain.Position) bool { return s.State == domain.StateDown }

// HACOLT only enters when the long-term filter agrees.
type HACOLT struct{}

func (HACOLT) Name() string        { return "hacolt" }
func (HACOLT) Description() string { return "long while HACO and HACOLT are both UP" }

func (HACOLT) Enter(s Snapshot) bool {
	return trendUp(s) && s.LTState == domain.StateUp
}

func (HACOLT) Exit(s Snapshot, _ domain.Position) bool { return s.State == domain.StateDown }

// BuyHold buys the first warm bar and holds to the end of the series.
type BuyHold struct{}

func (BuyHold) Name() string        { return "buy_hold" }
func (BuyHold) Description() string { return "buy the first eligible bar and hold" }

func (BuyHold) Enter(s Snapshot) bool { return s.Warm }

func (BuyHold) Exit(Snapshot, domain.Position) bool { return false }
